package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/blessen010/EmailThing/internal/config"
	"github.com/blessen010/EmailThing/internal/domain"
	sqlstore "github.com/blessen010/EmailThing/internal/storage/sql"
)

// 注册是邀请制的，新邀请码通过这个命令签发。
func main() {
	code := flag.String("code", "", "邀请码内容，留空时随机生成")
	ttl := flag.Duration("ttl", 24*time.Hour, "邀请码有效期")
	count := flag.Int("count", 1, "生成数量（指定 -code 时忽略）")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if cfg.Database.Type == "" {
		fmt.Println("EMAILTHING_DATABASE_TYPE and EMAILTHING_DATABASE_DSN must be set;")
		fmt.Println("invite codes created against memory storage would not outlive this process.")
		os.Exit(1)
	}

	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	codes := make([]string, 0, *count)
	if *code != "" {
		codes = append(codes, *code)
	} else {
		for i := 0; i < *count; i++ {
			c, err := randomCode()
			if err != nil {
				fmt.Printf("Failed to generate invite code: %v\n", err)
				os.Exit(1)
			}
			codes = append(codes, c)
		}
	}

	now := time.Now()
	expiresAt := now.Add(*ttl)

	for _, c := range codes {
		invite := &domain.InviteCode{
			Code:      c,
			ExpiresAt: expiresAt,
			CreatedAt: now,
		}
		if err := store.CreateInviteCode(invite); err != nil {
			fmt.Printf("Failed to create invite code: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Invite code created: %s (expires %s)\n", c, expiresAt.Format(time.RFC3339))
	}
}

// randomCode 生成 8 字符的十六进制邀请码
func randomCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
