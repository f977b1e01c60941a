package htlcswitch

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/go-errors/errors"

	"github.com/lnchan/lnnode/lnwire"
)

// mockServer is a test double for Peer: it records every message sent to it
// and dispatches incoming wire traffic to its own Switch, mirroring how a
// real peer connection feeds messages to the links it owns.
type mockServer struct {
	sync.Mutex

	started  int32
	shutdown int32
	wg       sync.WaitGroup
	quit     chan struct{}

	t    *testing.T
	name string

	messages chan lnwire.Message

	id         [33]byte
	htlcSwitch *Switch

	recordFuncs []func(lnwire.Message)
}

var _ Peer = (*mockServer)(nil)

func newMockServer(t *testing.T, name string) *mockServer {
	var id [33]byte
	h := sha256.Sum256([]byte(name))
	copy(id[:], h[:])

	return &mockServer{
		t:        t,
		id:       id,
		name:     name,
		messages: make(chan lnwire.Message, 3000),
		quit:     make(chan struct{}),
		htlcSwitch: New(Config{
			LocalChannelClose: func(pubKey []byte, request *ChanClose) {},
		}),
	}
}

func (s *mockServer) Start() error {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return nil
	}

	s.htlcSwitch.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case msg := <-s.messages:
				for _, f := range s.recordFuncs {
					f(msg)
				}

				if err := s.readHandler(msg); err != nil {
					s.t.Errorf("%v server error: %v", s.name, err)
				}
			case <-s.quit:
				return
			}
		}
	}()

	return nil
}

// messageInterceptor lets a test observe every message sent to this peer.
type messageInterceptor func(m lnwire.Message)

func (s *mockServer) record(f messageInterceptor) {
	s.Lock()
	defer s.Unlock()
	s.recordFuncs = append(s.recordFuncs, f)
}

// SendMessage implements Peer by queuing message for this peer's dispatch
// goroutine; the sync flag is ignored since the mock never blocks.
func (s *mockServer) SendMessage(message lnwire.Message, _ bool) error {
	select {
	case s.messages <- message:
	case <-s.quit:
	}

	return nil
}

func (s *mockServer) readHandler(message lnwire.Message) error {
	var targetChan lnwire.ChannelID

	switch msg := message.(type) {
	case *lnwire.UpdateAddHTLC:
		targetChan = msg.ChanID
	case *lnwire.UpdateFulfillHTLC:
		targetChan = msg.ChanID
	case *lnwire.UpdateFailHTLC:
		targetChan = msg.ChanID
	case *lnwire.RevokeAndAck:
		targetChan = msg.ChanID
	case *lnwire.CommitSig:
		targetChan = msg.ChanID
	case *lnwire.Shutdown:
		targetChan = msg.ChanID
	case *lnwire.ClosingSigned:
		targetChan = msg.ChanID
	case *lnwire.Error:
		targetChan = msg.ChanID
	default:
		return errors.New("unknown message type")
	}

	link, err := s.htlcSwitch.GetLink(targetChan)
	if err != nil {
		return err
	}

	link.HandleChannelUpdate(message)
	return nil
}

func (s *mockServer) PubKey() [33]byte {
	return s.id
}

func (s *mockServer) WipeChannel(*wire.OutPoint) error {
	return nil
}

func (s *mockServer) Stop() {
	if !atomic.CompareAndSwapInt32(&s.shutdown, 0, 1) {
		return
	}

	s.htlcSwitch.Stop()

	close(s.quit)
	s.wg.Wait()
}

func (s *mockServer) String() string {
	return s.name
}

// mockChannelLink is a bare-bones ChannelLink double used to exercise the
// Switch's forwarding and circuit bookkeeping without a real lnwallet
// channel behind it.
type mockChannelLink struct {
	chanID      lnwire.ChannelID
	shortChanID lnwire.ShortChannelID

	peer Peer

	mailbox MailBox

	eligible int32
}

func newMockChannelLink(chanID lnwire.ChannelID,
	shortChanID lnwire.ShortChannelID, peer Peer) *mockChannelLink {

	return &mockChannelLink{
		chanID:      chanID,
		shortChanID: shortChanID,
		peer:        peer,
		eligible:    1,
	}
}

func (f *mockChannelLink) HandleSwitchPacket(pkt *htlcPacket) error {
	if f.mailbox != nil {
		f.mailbox.AddPacket(pkt)
	}
	return nil
}

func (f *mockChannelLink) HandleChannelUpdate(msg lnwire.Message) {
	if f.mailbox != nil {
		f.mailbox.AddMessage(msg)
	}
}

func (f *mockChannelLink) ChanID() lnwire.ChannelID           { return f.chanID }
func (f *mockChannelLink) ShortChanID() lnwire.ShortChannelID { return f.shortChanID }

func (f *mockChannelLink) UpdateShortChanID(sid lnwire.ShortChannelID) {
	f.shortChanID = sid
}

func (f *mockChannelLink) UpdateForwardingPolicy(_ ForwardingPolicy) {}

func (f *mockChannelLink) Bandwidth() lnwire.MilliSatoshi { return 99999999 }

func (f *mockChannelLink) Stats() (uint64, lnwire.MilliSatoshi, lnwire.MilliSatoshi) {
	return 0, 0, 0
}

func (f *mockChannelLink) Peer() Peer { return f.peer }

func (f *mockChannelLink) EligibleToForward() bool {
	return atomic.LoadInt32(&f.eligible) == 1
}

func (f *mockChannelLink) setEligible(eligible bool) {
	var v int32
	if eligible {
		v = 1
	}
	atomic.StoreInt32(&f.eligible, v)
}

func (f *mockChannelLink) AttachMailBox(mb MailBox) { f.mailbox = mb }

func (f *mockChannelLink) Start() error { return nil }
func (f *mockChannelLink) Stop()        {}

var _ ChannelLink = (*mockChannelLink)(nil)

// mockDeobfuscator is a no-op ErrorDecrypter test double that simply wraps
// whatever reason bytes it's given without attempting to parse the plain
// wire encoding, useful for asserting a failure reached the right place
// without caring about its content.
type mockDeobfuscator struct{}

func (mockDeobfuscator) DecryptError(reason []byte) (*ForwardingError, error) {
	return &ForwardingError{ExtraMsg: fmt.Sprintf("%x", reason)}, nil
}

var _ ErrorDecrypter = (*mockDeobfuscator)(nil)
