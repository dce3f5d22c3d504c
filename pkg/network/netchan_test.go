package network

import (
	"bytes"
	"net"
	"testing"
)

func newTestChan() *NetChan {
	return NewNetChan(&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 27960}, 1234)
}

func TestNetChan_TransmitSmallPayloadSinglePacket(t *testing.T) {
	c := newTestChan()
	payload := []byte("hello world")
	pkts := c.Transmit(payload)
	if len(pkts) != 1 {
		t.Fatalf("len(pkts) = %d, want 1", len(pkts))
	}
	if c.OutgoingSequence() != 2 {
		t.Errorf("OutgoingSequence after one transmit = %d, want 2", c.OutgoingSequence())
	}

	server := newTestChan()
	body, outcome := server.ProcessPacket(pkts[0])
	if outcome != OutcomeComplete {
		t.Fatalf("outcome = %v, want OutcomeComplete", outcome)
	}
	if !bytes.Equal(body, payload) {
		t.Errorf("body = %q, want %q", body, payload)
	}
}

func TestNetChan_FragmentReassemblyRoundTrip(t *testing.T) {
	sizes := []int{1, 100, FragmentSize - 1, FragmentSize, FragmentSize + 1, 2 * FragmentSize, 3 * FragmentSize, 4 * MaxPacketLen, 2*FragmentSize + 37}
	for _, size := range sizes {
		payload := make([]byte, size)
		for i := range payload {
			payload[i] = byte(i % 251)
		}
		sender := newTestChan()
		receiver := newTestChan()

		pkts := sender.Transmit(payload)
		var reassembled []byte
		for i, pkt := range pkts {
			body, outcome := receiver.ProcessPacket(pkt)
			if i == len(pkts)-1 {
				if outcome != OutcomeComplete {
					t.Fatalf("size=%d: final fragment outcome = %v, want OutcomeComplete", size, outcome)
				}
				reassembled = body
			} else {
				if outcome != OutcomePending {
					t.Fatalf("size=%d: fragment %d outcome = %v, want OutcomePending", size, i, outcome)
				}
			}
		}
		if !bytes.Equal(reassembled, payload) {
			t.Errorf("size=%d: reassembled mismatch (got %d bytes, want %d)", size, len(reassembled), len(payload))
		}
	}
}

func TestNetChan_IncomingSequenceMonotoneDropsStaleAndDuplicate(t *testing.T) {
	sender := newTestChan()
	receiver := newTestChan()

	p1 := sender.Transmit([]byte("first"))[0]
	p2 := sender.Transmit([]byte("second"))[0]

	if _, outcome := receiver.ProcessPacket(p2); outcome != OutcomeComplete {
		t.Fatalf("processing p2 first: outcome = %v, want OutcomeComplete", outcome)
	}
	lastSeq := receiver.IncomingSequence()

	// p1 has a lower sequence than what was already accepted: must be dropped.
	if _, outcome := receiver.ProcessPacket(p1); outcome != OutcomeDropped {
		t.Errorf("stale packet outcome = %v, want OutcomeDropped", outcome)
	}
	if receiver.IncomingSequence() != lastSeq {
		t.Errorf("IncomingSequence changed on dropped packet: %d != %d", receiver.IncomingSequence(), lastSeq)
	}

	// Replaying p2 itself (duplicate) must also be dropped.
	if _, outcome := receiver.ProcessPacket(p2); outcome != OutcomeDropped {
		t.Errorf("duplicate packet outcome = %v, want OutcomeDropped", outcome)
	}
}

func TestNetChan_FragmentSequenceMismatchResetsReassembly(t *testing.T) {
	sender := newTestChan()
	receiver := newTestChan()

	big := make([]byte, 3*FragmentSize)
	pkts := sender.Transmit(big)
	if len(pkts) < 2 {
		t.Fatal("test payload did not fragment")
	}

	// Accept the first fragment of message A.
	if _, outcome := receiver.ProcessPacket(pkts[0]); outcome != OutcomePending {
		t.Fatalf("first fragment outcome = %v, want OutcomePending", outcome)
	}

	// A fresh fragmented message (higher sequence) resets the buffer rather
	// than erroring: the spec requires "new fragmented sequence resets the
	// reassembly buffer".
	second := sender.Transmit(make([]byte, 3*FragmentSize))
	if _, outcome := receiver.ProcessPacket(second[0]); outcome != OutcomePending {
		t.Fatalf("new message's first fragment outcome = %v, want OutcomePending", outcome)
	}
}

func TestNetChan_FragmentOutOfOrderOffsetIsBroken(t *testing.T) {
	sender := newTestChan()
	receiver := newTestChan()

	big := make([]byte, 3*FragmentSize)
	pkts := sender.Transmit(big)
	if len(pkts) < 3 {
		t.Fatal("test payload did not produce at least 3 fragments")
	}

	if _, outcome := receiver.ProcessPacket(pkts[0]); outcome != OutcomePending {
		t.Fatalf("fragment 0 outcome = %v, want OutcomePending", outcome)
	}
	// Skip fragment 1, deliver fragment 2 out of order: offset mismatch.
	if _, outcome := receiver.ProcessPacket(pkts[2]); outcome != OutcomeFragmentBroken {
		t.Errorf("out-of-order fragment outcome = %v, want OutcomeFragmentBroken", outcome)
	}
}

func TestNetChan_TooShortPacketDropped(t *testing.T) {
	c := newTestChan()
	if _, outcome := c.ProcessPacket([]byte{1, 2, 3}); outcome != OutcomeDropped {
		t.Errorf("outcome = %v, want OutcomeDropped", outcome)
	}
}

func TestNetChan_DropMetricWithLoss(t *testing.T) {
	sender := newTestChan()
	receiver := newTestChan()

	var sent [][]byte
	for i := 0; i < 20; i++ {
		sent = append(sent, sender.Transmit([]byte{byte(i)})[0])
	}

	// Deliver every third packet (simulating ~66% loss), strictly in order,
	// and verify IncomingSequence only ever increases.
	prev := uint32(0)
	for i := 0; i < len(sent); i += 3 {
		_, outcome := receiver.ProcessPacket(sent[i])
		if outcome == OutcomeComplete {
			if receiver.IncomingSequence() <= prev {
				t.Fatalf("IncomingSequence did not increase: %d <= %d", receiver.IncomingSequence(), prev)
			}
			prev = receiver.IncomingSequence()
		}
	}

	// Sequences 1,4,7,...,19 were accepted; each accept after the first
	// skips two lost packets.
	if receiver.Dropped != 12 {
		t.Errorf("Dropped = %d, want 12", receiver.Dropped)
	}
}
