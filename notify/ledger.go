package notify

import "sync"

// DefaultLedgerSize bounds the messages an SMSNotifier tracks between retries.
const DefaultLedgerSize = 4096

// deliveryLedger remembers which texts of a partly delivered message went
// out. The oldest message is evicted once size messages are tracked.
type deliveryLedger struct {
	mu    sync.Mutex
	size  int
	sent  map[string]map[string]struct{}
	order []string
}

func newDeliveryLedger(size int) *deliveryLedger {
	return &deliveryLedger{size: size, sent: make(map[string]map[string]struct{})}
}

type ledgerKey struct {
	message string
	text    string
}

func deliveryKey(messageID string, t Text) ledgerKey {
	return ledgerKey{message: messageID, text: t.To + "\x00" + t.Body}
}

func (l *deliveryLedger) has(k ledgerKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sent[k.message][k.text]
	return ok
}

func (l *deliveryLedger) add(k ledgerKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	texts, ok := l.sent[k.message]
	if !ok {
		if len(l.order) >= l.size {
			delete(l.sent, l.order[0])
			l.order = l.order[1:]
		}
		texts = make(map[string]struct{})
		l.sent[k.message] = texts
		l.order = append(l.order, k.message)
	}
	texts[k.text] = struct{}{}
}

// forget drops a fully delivered message.
func (l *deliveryLedger) forget(messageID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.sent[messageID]; !ok {
		return
	}
	delete(l.sent, messageID)
	for i, id := range l.order {
		if id == messageID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *deliveryLedger) tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sent)
}

