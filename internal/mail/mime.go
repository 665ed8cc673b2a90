package mail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Address 邮件地址（显示名称可选）
type Address struct {
	Name string
	Addr string
}

// String 渲染为 RFC 5322 地址形式
func (a Address) String() string {
	if a.Name == "" {
		return a.Addr
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Addr)
}

// Message 表示一封待发送的系统邮件。
// Raw 方法生成 multipart/alternative 报文：
// text/plain 部分原样写入，text/html 部分以 base64 编码。
type Message struct {
	From     Address
	To       Address
	ReplyTo  Address
	Subject  string
	Headers  map[string]string
	TextBody string
	HTMLBody string
}

// Raw 生成完整的 MIME 报文
func (m *Message) Raw() []byte {
	var headerBuf bytes.Buffer

	headerBuf.WriteString(fmt.Sprintf("From: %s\r\n", m.From))
	headerBuf.WriteString(fmt.Sprintf("To: %s\r\n", m.To))
	headerBuf.WriteString(fmt.Sprintf("Subject: %s\r\n", m.Subject))
	headerBuf.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z)))
	headerBuf.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.New().String(), domainOf(m.From.Addr)))
	if m.ReplyTo.Addr != "" {
		headerBuf.WriteString(fmt.Sprintf("Reply-To: %s\r\n", m.ReplyTo))
	}
	for k, v := range m.Headers {
		headerBuf.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	headerBuf.WriteString("MIME-Version: 1.0\r\n")

	boundary := fmt.Sprintf("=_%s", uuid.New().String()[:16])
	headerBuf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	headerBuf.WriteString("\r\n")

	var bodyBuf bytes.Buffer
	if m.TextBody != "" {
		bodyBuf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		bodyBuf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		bodyBuf.WriteString(m.TextBody)
		bodyBuf.WriteString("\r\n")
	}
	if m.HTMLBody != "" {
		bodyBuf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		bodyBuf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
		bodyBuf.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		bodyBuf.WriteString(wrapBase64(base64.StdEncoding.EncodeToString([]byte(m.HTMLBody))))
		bodyBuf.WriteString("\r\n")
	}
	bodyBuf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return append(headerBuf.Bytes(), bodyBuf.Bytes()...)
}

// wrapBase64 按 RFC 2045 把 base64 内容折行到 76 列
func wrapBase64(encoded string) string {
	const lineLen = 76

	var b bytes.Buffer
	for len(encoded) > lineLen {
		b.WriteString(encoded[:lineLen])
		b.WriteString("\r\n")
		encoded = encoded[lineLen:]
	}
	b.WriteString(encoded)
	return b.String()
}

func domainOf(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == '@' {
			return addr[i+1:]
		}
	}
	return addr
}
