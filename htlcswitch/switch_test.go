package htlcswitch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lnchan/lnnode/lnwire"
)

func newTestSwitch(t *testing.T) *Switch {
	t.Helper()

	sw := New(Config{})
	require.NoError(t, sw.Start())
	t.Cleanup(func() { require.NoError(t, sw.Stop()) })

	return sw
}

func TestSwitchAddGetRemoveLink(t *testing.T) {
	sw := newTestSwitch(t)

	peer := newMockServer(t, "bob")
	link := newMockChannelLink(
		lnwire.ChannelID{1}, lnwire.NewShortChanIDFromInt(1), peer,
	)

	require.NoError(t, sw.AddLink(link))

	got, err := sw.GetLink(lnwire.ChannelID{1})
	require.NoError(t, err)
	require.Same(t, ChannelLink(link), got)

	links, err := sw.GetLinksByInterface(peer.PubKey())
	require.NoError(t, err)
	require.Len(t, links, 1)

	require.NoError(t, sw.RemoveLink(lnwire.ChannelID{1}))

	_, err = sw.GetLink(lnwire.ChannelID{1})
	require.Error(t, err)
}

func TestSwitchForwardsHTLCBetweenLinks(t *testing.T) {
	sw := newTestSwitch(t)

	alicePeer := newMockServer(t, "alice")
	bobPeer := newMockServer(t, "bob")

	inLink := newMockChannelLink(
		lnwire.ChannelID{1}, lnwire.NewShortChanIDFromInt(1), alicePeer,
	)
	outLink := newMockChannelLink(
		lnwire.ChannelID{2}, lnwire.NewShortChanIDFromInt(2), bobPeer,
	)
	outLink.AttachMailBox(newMemoryMailBox())
	outLink.mailbox.Start()
	t.Cleanup(func() { outLink.mailbox.Stop() })

	require.NoError(t, sw.AddLink(inLink))
	require.NoError(t, sw.AddLink(outLink))

	pkt := &htlcPacket{
		incomingChanID: inLink.ShortChanID(),
		incomingHTLCID: 3,
		outgoingChanID: outLink.ShortChanID(),
		outgoingHTLCID: 4,
		obfuscator:     newPlainErrorEncrypter(),
		htlc: &lnwire.UpdateAddHTLC{
			ChanID: lnwire.ChannelID{1},
			Amount: 1000,
		},
	}
	require.NoError(t, sw.forward(pkt))

	select {
	case got := <-outLink.mailbox.PacketOutBox():
		require.Equal(t, outLink.ShortChanID(), got.outgoingChanID)
	case <-time.After(time.Second):
		t.Fatal("packet was never delivered to the outgoing link")
	}
}

func TestSwitchSendHTLCCompletesOnSettle(t *testing.T) {
	sw := newTestSwitch(t)

	bobPeer := newMockServer(t, "bob")
	link := newMockChannelLink(
		lnwire.ChannelID{1}, lnwire.NewShortChanIDFromInt(1), bobPeer,
	)
	require.NoError(t, sw.AddLink(link))

	var (
		preimage [32]byte
		sendErr  error
		done     = make(chan struct{})
	)

	htlc := &lnwire.UpdateAddHTLC{
		PaymentHash: [32]byte{7},
		Amount:      500,
	}

	go func() {
		preimage, sendErr = sw.SendHTLC(
			bobPeer.PubKey(), htlc, newPlainErrorDecrypter(nil),
		)
		close(done)
	}()

	// Give SendHTLC a moment to register the pending payment before we
	// simulate the downstream settle arriving back.
	time.Sleep(50 * time.Millisecond)

	wantPreimage := [32]byte{1, 2, 3}
	settle := &htlcPacket{
		incomingHTLCID: 0,
		isRouted:       true,
		htlc: &lnwire.UpdateFulfillHTLC{
			PaymentPreimage: wantPreimage,
		},
	}
	require.NoError(t, sw.forward(settle))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendHTLC never completed")
	}

	require.NoError(t, sendErr)
	require.Equal(t, wantPreimage, preimage)
}
