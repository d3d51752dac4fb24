package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/daftari/core"
	"github.com/trezcool/daftari/testutil"
)

var conf = &core.Config{AppName: "Daftari", DefaultFromEmail: mail.Address{Address: "noreply@daftari.test"}}

func TestConsoleServiceMock(t *testing.T) {
	logger := new(testutil.Logger)
	svc := NewConsoleServiceMock(conf, logger)

	svc.SendMessages(
		&core.EmailMessage{
			To:           []mail.Address{{Name: "Ada", Address: "ada@daftari.test"}},
			Subject:      "Quiz",
			TemplateName: "notice",
			TemplateData: map[string]string{"AppName": "Daftari", "Title": "Quiz", "Body": "Friday", "CourseCode": "C101"},
		},
		&core.EmailMessage{Subject: "nobody", BodyStr: "dropped"},
		&core.EmailMessage{To: []mail.Address{{Address: "x@daftari.test"}}, TemplateName: "missing"},
	)

	sent := svc.Sent()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].TextContent, "Course: C101")
	assert.Contains(t, sent[0].HTMLContent, "<h2>Quiz</h2>")
	assert.Len(t, logger.Messages("error"), 1)
}

func TestSendgridService_Prepare(t *testing.T) {
	svc := NewSendgridService(conf, new(testutil.Logger))
	to := []mail.Address{{Name: "Ada", Address: "ada@daftari.test"}, {Name: "Alan", Address: "alan@daftari.test"}}
	m := svc.prepare(core.EmailMessage{To: to, Subject: "Quiz", TextContent: "Friday"}, to)

	require.Len(t, m.Personalizations, 2, "one personalization per recipient")
	for i, p := range m.Personalizations {
		assert.Equal(t, "[Daftari] Quiz", p.Subject)
		require.Len(t, p.To, 1)
		assert.Equal(t, to[i].Address, p.To[0].Address)
	}
	require.Len(t, m.Content, 1, "no html part without html content")
	assert.Equal(t, "noreply@daftari.test", m.From.Address)
}

func TestBatches(t *testing.T) {
	addrs := make([]mail.Address, 5)
	tests := []struct {
		name string
		to   []mail.Address
		size int
		want []int
	}{
		{"empty", nil, 2, []int{}},
		{"exact", addrs[:4], 2, []int{2, 2}},
		{"remainder", addrs, 2, []int{2, 2, 1}},
		{"single batch", addrs, 10, []int{5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make([]int, 0)
			for _, b := range batches(tt.to, tt.size) {
				got = append(got, len(b))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
