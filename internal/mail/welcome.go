package mail

import (
	"bytes"
	"fmt"

	"github.com/osteele/liquid"
	"github.com/yuin/goldmark"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
)

// 欢迎邮件的固定文案与发件信息
const (
	WelcomeSubject = "Welcome to EmailThing!"

	systemSenderName = "EmailThing"
	systemSenderAddr = "system@emailthing.dev"
	contactAddr      = "contact@emailthing.xyz"
)

// welcomeTemplate 欢迎邮件的 Markdown 模板。
// 纯文本部分直接使用渲染后的 Markdown，HTML 部分由 Markdown 转换得到。
const welcomeTemplate = `### Hi **@{{ username }}**,

Welcome to EmailThing!

We're excited to have you on board. With EmailThing, you can enjoy a range of features designed to make managing your emails a breeze:

*   **API Integration**: Send emails and more with our [API].
*   **Custom Domains**: Use your [own domain] for your emails.
*   **Multi-User Support**: [Invite others] to your mailbox.
*   **Temporary Email**: Need a burner email? [Get many here].
*   **Progressive Web App (PWA)**: Install EmailThing to your home screen on mobile for easy access and notifications.
    [Set up notifications] on both desktop and mobile.
*   **Contact Page**: Create your own [contact page] to receive messages with a simple form.

EmailThing is proudly open source. Check out our [GitHub] for more details.

To get started, visit and explore all that we have to offer.

If you have any questions or feedback, feel free to reach out.

Best regards,
[RiskyMH] (creator and founder)


<!-- Links -->
[RiskyMH]: https://riskymh.dev
[API]: https://emailthing.xyz/docs/api
[own domain]: https://emailthing.xyz/mail/{{ mailbox_id }}/config
[Invite others]: https://emailthing.xyz/mail/{{ mailbox_id }}/config
[Get many here]: https://emailthing.xyz/mail/{{ mailbox_id }}/temp
[Set up notifications]: https://emailthing.xyz/settings/notifications
[contact page]: https://emailthing.xyz/settings/emailthing-me
[GitHub]: https://github.com/RiskyMH/EmailThing`

var (
	templateEngine = liquid.NewEngine()

	markdown = goldmark.New(
		goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
	)
)

// WelcomeEmail 渲染给新用户的欢迎邮件。
// Markdown 模板插入用户名和邮箱 ID，转为 HTML 后与纯文本一起
// 打包为 multipart 报文；recipient 为用户的默认别名地址。
func WelcomeEmail(username, recipient, mailboxID string) (*Message, error) {
	text, err := templateEngine.ParseAndRenderString(welcomeTemplate, liquid.Bindings{
		"username":   username,
		"mailbox_id": mailboxID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render welcome template: %w", err)
	}

	var htmlBuf bytes.Buffer
	if err := markdown.Convert([]byte(text), &htmlBuf); err != nil {
		return nil, fmt.Errorf("failed to convert welcome markdown: %w", err)
	}

	return &Message{
		From:    Address{Name: systemSenderName, Addr: systemSenderAddr},
		To:      Address{Name: username, Addr: recipient},
		ReplyTo: Address{Addr: contactAddr},
		Subject: WelcomeSubject,
		Headers: map[string]string{
			"X-EmailThing": "official",
		},
		TextBody: text,
		HTMLBody: htmlBuf.String(),
	}, nil
}
