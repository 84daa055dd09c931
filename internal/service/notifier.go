package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pass-service/internal/models"
	"pass-service/internal/util"

	"go.uber.org/zap"
)

// Transport delivers one HTML email and reports the outcome. No delivery
// guarantee is assumed.
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// TemplateStore reads stored notification templates
type TemplateStore interface {
	GetDefaultTemplate(ctx context.Context) (*models.EmailTemplate, error)
}

// The generic fallback is the last tier of the resolution chain and must
// always be available, so it lives in code rather than storage.
const (
	fallbackSubject = "Your pass {{pass_code}} is ready"
	fallbackBody    = `<html><body>
<p>Hello {{customer_name}},</p>
<p>Your pass <strong>{{pass_code}}</strong> is now active for {{guests}} guest(s)
over {{days}} day(s), valid until {{expires_at}}.</p>
<p><a href="{{access_url}}">View your pass</a></p>
</body></html>`
)

// NotifyResult reports what happened to one welcome email
type NotifyResult struct {
	Attempted bool
	Sent      bool
}

// Notifier resolves a template, substitutes variables, and attempts delivery.
// Failures are recorded and swallowed; issuance success never depends on
// notification success.
type Notifier struct {
	templates   TemplateStore
	transport   Transport
	sendTimeout time.Duration
	portalURL   string
	logger      *zap.Logger
}

// NewNotifier creates a new notification dispatcher
func NewNotifier(templates TemplateStore, transport Transport, sendTimeout time.Duration, portalURL string) *Notifier {
	return &Notifier{
		templates:   templates,
		transport:   transport,
		sendTimeout: sendTimeout,
		portalURL:   portalURL,
		logger:      util.GetLogger(),
	}
}

// Notify sends the welcome email for an issued pass. The returned result is
// informational; Notify itself never fails.
func (n *Notifier) Notify(ctx context.Context, pass *models.Pass, cred *models.AccessCredential, cfg *models.PassConfig) NotifyResult {
	ctx, span := util.StartSpan(ctx, "Notifier.Notify")
	defer span.End()

	subject, body := n.resolveTemplate(ctx, cfg)

	replacer := n.variableReplacer(pass, cred)
	subject = replacer.Replace(subject)
	body = replacer.Replace(body)

	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	if err := n.transport.Send(sendCtx, pass.CustomerEmail, subject, body); err != nil {
		util.NotificationsFailedTotal.Inc()
		n.logger.Warn("Welcome email failed",
			zap.Int64("pass_id", pass.ID),
			zap.String("to", pass.CustomerEmail),
			zap.Error(err))
		return NotifyResult{Attempted: true, Sent: false}
	}

	util.NotificationsSentTotal.Inc()
	n.logger.Info("Welcome email sent",
		zap.Int64("pass_id", pass.ID),
		zap.String("to", pass.CustomerEmail))
	return NotifyResult{Attempted: true, Sent: true}
}

// Rebuy reminders always use the built-in template; seller templates only
// cover the welcome email.
const (
	rebuySubject = "Come back soon, {{customer_name}}"
	rebuyBody    = `<html><body>
<p>Hello {{customer_name}},</p>
<p>Your pass <strong>{{pass_code}}</strong> has run its course. Grab a new
one whenever you are ready: <a href="{{access_url}}">get a new pass</a>.</p>
</body></html>`
)

// SendRebuyReminder sends the delayed repurchase nudge for an expired or
// expiring pass. Same contract as Notify: attempt, report, never propagate.
func (n *Notifier) SendRebuyReminder(ctx context.Context, pass *models.Pass) NotifyResult {
	ctx, span := util.StartSpan(ctx, "Notifier.SendRebuyReminder")
	defer span.End()

	replacer := n.variableReplacer(pass, nil)
	subject := replacer.Replace(rebuySubject)
	body := replacer.Replace(rebuyBody)

	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()

	if err := n.transport.Send(sendCtx, pass.CustomerEmail, subject, body); err != nil {
		util.NotificationsFailedTotal.Inc()
		n.logger.Warn("Rebuy reminder failed",
			zap.Int64("pass_id", pass.ID),
			zap.Error(err))
		return NotifyResult{Attempted: true, Sent: false}
	}

	util.NotificationsSentTotal.Inc()
	return NotifyResult{Attempted: true, Sent: true}
}

// resolveTemplate walks the three-tier chain: configuration-specific
// template, then the stored default, then the built-in fallback. The last
// tier cannot fail, so the chain never dead-ends.
func (n *Notifier) resolveTemplate(ctx context.Context, cfg *models.PassConfig) (subject, body string) {
	if cfg != nil && strings.TrimSpace(cfg.TemplateBody) != "" {
		return cfg.TemplateSubject, cfg.TemplateBody
	}

	tpl, err := n.templates.GetDefaultTemplate(ctx)
	if err != nil {
		n.logger.Warn("Default template lookup failed, using fallback", zap.Error(err))
	} else if tpl != nil && strings.TrimSpace(tpl.Body) != "" {
		return tpl.Subject, tpl.Body
	}

	return fallbackSubject, fallbackBody
}

// variableReplacer substitutes the fixed placeholder set. Tokens it does not
// know stay verbatim.
func (n *Notifier) variableReplacer(pass *models.Pass, cred *models.AccessCredential) *strings.Replacer {
	accessURL := n.portalURL
	if cred != nil {
		accessURL = fmt.Sprintf("%s/passes?token=%s", n.portalURL, cred.Token)
	}

	return strings.NewReplacer(
		"{{customer_name}}", pass.CustomerName,
		"{{pass_code}}", pass.Code,
		"{{guests}}", strconv.Itoa(pass.Guests),
		"{{days}}", strconv.Itoa(pass.Days),
		"{{expires_at}}", pass.ExpiresAt.Format("January 2, 2006"),
		"{{access_url}}", accessURL,
	)
}
