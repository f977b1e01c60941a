package htlcswitch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lnchan/lnnode/lnwire"
)

func TestMemoryMailBoxRelaysMessagesAndPackets(t *testing.T) {
	mb := newMemoryMailBox()
	mb.Start()
	defer mb.Stop()

	msg := &lnwire.UpdateFailHTLC{ChanID: lnwire.ChannelID{1}}
	mb.AddMessage(msg)

	select {
	case out := <-mb.MessageOutBox():
		require.Equal(t, msg, out)
	case <-time.After(time.Second):
		t.Fatal("message was not relayed")
	}

	pkt := &htlcPacket{incomingHTLCID: 7}
	mb.AddPacket(pkt)

	select {
	case out := <-mb.PacketOutBox():
		require.Equal(t, pkt, out)
	case <-time.After(time.Second):
		t.Fatal("packet was not relayed")
	}
}

func TestMemoryMailBoxStopUnblocksRelay(t *testing.T) {
	mb := newMemoryMailBox()
	mb.Start()

	mb.Stop()

	select {
	case <-mb.MessageOutBox():
		t.Fatal("unexpected message after stop")
	case <-time.After(50 * time.Millisecond):
	}
}
