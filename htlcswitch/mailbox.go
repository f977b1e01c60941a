package htlcswitch

import (
	"github.com/lightningnetwork/lnd/queue"

	"github.com/lnchan/lnnode/lnwire"
)

// memoryMailBox is the default MailBox implementation. It fans incoming wire
// messages and switch packets through a pair of unbounded
// queue.ConcurrentQueue buffers so a slow link never blocks the peer's
// reader goroutine or the Switch's forwarding goroutine.
type memoryMailBox struct {
	messages *queue.ConcurrentQueue
	packets  *queue.ConcurrentQueue

	msgOut chan lnwire.Message
	pktOut chan *htlcPacket

	quit chan struct{}
}

// mailBoxQueueSize is the size of each ConcurrentQueue's internal channel
// buffer. Messages/packets beyond it spill into the queue's overflow list,
// so it does not bound the mailbox or block the sender.
const mailBoxQueueSize = 1000

// newMemoryMailBox creates a new, unstarted MailBox.
func newMemoryMailBox() *memoryMailBox {
	return &memoryMailBox{
		messages: queue.NewConcurrentQueue(mailBoxQueueSize),
		packets:  queue.NewConcurrentQueue(mailBoxQueueSize),
		msgOut:   make(chan lnwire.Message),
		pktOut:   make(chan *htlcPacket),
		quit:     make(chan struct{}),
	}
}

func (m *memoryMailBox) Start() {
	m.messages.Start()
	m.packets.Start()

	go m.relayMessages()
	go m.relayPackets()
}

func (m *memoryMailBox) Stop() {
	close(m.quit)
	m.messages.Stop()
	m.packets.Stop()
}

func (m *memoryMailBox) relayMessages() {
	for {
		select {
		case raw, ok := <-m.messages.ChanOut():
			if !ok {
				return
			}
			select {
			case m.msgOut <- raw.(lnwire.Message):
			case <-m.quit:
				return
			}
		case <-m.quit:
			return
		}
	}
}

func (m *memoryMailBox) relayPackets() {
	for {
		select {
		case raw, ok := <-m.packets.ChanOut():
			if !ok {
				return
			}
			select {
			case m.pktOut <- raw.(*htlcPacket):
			case <-m.quit:
				return
			}
		case <-m.quit:
			return
		}
	}
}

func (m *memoryMailBox) AddMessage(msg lnwire.Message) {
	m.messages.ChanIn() <- msg
}

func (m *memoryMailBox) AddPacket(pkt *htlcPacket) {
	m.packets.ChanIn() <- pkt
}

func (m *memoryMailBox) MessageOutBox() <-chan lnwire.Message {
	return m.msgOut
}

func (m *memoryMailBox) PacketOutBox() <-chan *htlcPacket {
	return m.pktOut
}

var _ MailBox = (*memoryMailBox)(nil)
