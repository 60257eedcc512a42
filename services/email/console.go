package emailsvc

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/trezcool/hudhurio/core"
)

// consoleService writes emails to the console; for local dev.
type consoleService struct {
	mutex    sync.Mutex
	sentMsgs []*core.EmailMessage // for tests
	sync     bool                 // for tests
}

var _ core.EmailService = (*consoleService)(nil)

func NewConsoleService() *consoleService {
	return &consoleService{}
}

// NewConsoleServiceMock sends synchronously and records sent messages.
func NewConsoleServiceMock() *consoleService {
	return &consoleService{sync: true}
}

func (svc *consoleService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		if svc.sync {
			svc.send(msg)
			continue
		}
		go svc.send(msg)
	}
}

func (svc *consoleService) send(msg *core.EmailMessage) {
	if err := msg.Render(); err != nil {
		log.Printf("emailsvc: rendering message: %v", err)
		return
	}
	if !(msg.HasRecipients() && msg.HasContent()) {
		return
	}

	svc.mutex.Lock()
	svc.sentMsgs = append(svc.sentMsgs, msg)
	svc.mutex.Unlock()

	tos := make([]string, 0, len(msg.To))
	for _, to := range msg.To {
		tos = append(tos, to.String())
	}
	fmt.Printf(`
---------------------------------------------------------------
To: %s
Subject: %s

%s
---------------------------------------------------------------
`, strings.Join(tos, ", "), msg.Subject, msg.TextContent)
}

// SentMessages returns messages sent so far; for tests.
func (svc *consoleService) SentMessages() []*core.EmailMessage {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()
	return svc.sentMsgs
}
