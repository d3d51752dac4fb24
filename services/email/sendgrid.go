package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/trezcool/daftari/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

// maxPersonalizations is the sendgrid limit per request.
const maxPersonalizations = 1000

type SendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*SendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *SendgridService {
	return &SendgridService{
		key:        conf.SendgridApiKey,
		from:       sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

// SendMessages sends each message in the background.
// Every recipient gets its own personalization: recipients never see each other.
func (svc SendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				return
			}
			if !msg.HasRecipients() || !msg.HasContent() {
				return
			}
			for _, batch := range batches(msg.To, maxPersonalizations) {
				svc.send(svc.prepare(*msg, batch), msg.Subject, len(batch))
			}
		}()
	}
}

// batches splits recipients in groups of at most size.
func batches(to []mail.Address, size int) [][]mail.Address {
	out := make([][]mail.Address, 0, len(to)/size+1)
	for len(to) > size {
		out = append(out, to[:size])
		to = to[size:]
	}
	if len(to) > 0 {
		out = append(out, to)
	}
	return out
}

func (svc SendgridService) prepare(msg core.EmailMessage, to []mail.Address) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	for _, addr := range to {
		p := sgmail.NewPersonalization()
		p.Subject = svc.subjPrefix + msg.Subject
		p.AddTos(sgmail.NewEmail(addr.Name, addr.Address))
		m.AddPersonalizations(p)
	}
	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}
	return m
}

func (svc SendgridService) send(m *sgmail.SGMailV3, subject string, recipients int) {
	req := sendgrid.GetRequest(svc.key, endpoint, host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		svc.logger.Error("sending email", core.NewDependencyError("sendgrid", errors.Wrap(err, subject)))
	} else if res.StatusCode >= http.StatusBadRequest {
		svc.logger.Error(fmt.Sprintf("sending email to %d recipients - status: %d - Body: %s", recipients, res.StatusCode, res.Body))
	}
}
