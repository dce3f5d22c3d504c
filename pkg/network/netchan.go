package network

import (
	"encoding/binary"
	"net"
)

// Wire framing constants shared by every packet this package sends.
const (
	// MaxPacketLen is the largest datagram this channel will ever emit.
	MaxPacketLen = 1400
	// FragmentSize is the largest chunk carried by one fragment packet.
	// A chunk shorter than this terminates a fragmented message.
	FragmentSize = 1300
	// FragmentBit marks a sequence number as belonging to a fragmented
	// packet.
	FragmentBit uint32 = 1 << 31
	// reassemblyCap bounds the reassembly buffer at four max-size
	// packets, matching the spec's resource bound.
	reassemblyCap = 4 * MaxPacketLen

	headerSeq   = 0
	headerQport = 4
	headerLen   = 6 // seq(4) + qport(2)

	fragHeaderStart  = headerLen
	fragHeaderLength = headerLen + 2
	fragHeaderLen    = headerLen + 4 // + frag_start(2) + frag_length(2)
)

// PacketOutcome classifies the result of feeding one inbound datagram
// through a NetChan.
type PacketOutcome int

const (
	// OutcomeDropped means the packet was stale, duplicate, or
	// malformed and carries no payload.
	OutcomeDropped PacketOutcome = iota
	// OutcomePending means a fragment was accepted but the message is
	// not yet complete.
	OutcomePending
	// OutcomeComplete means payload holds a fully reassembled message
	// (possibly a single unfragmented packet).
	OutcomeComplete
	// OutcomeFragmentBroken means a fragment arrived out of the
	// expected offset order and the in-flight reassembly was
	// discarded.
	OutcomeFragmentBroken
)

// NetChan is a per-peer sequenced, fragmenting framing layer over
// unordered datagrams. One instance lives one-to-one with an accepted
// connection; losing the connection destroys it. NetChan never blocks —
// the underlying transport is non-blocking datagrams, and all parse
// failures are reported through PacketOutcome rather than an error.
type NetChan struct {
	RemoteAddr *net.UDPAddr
	Qport      uint16

	outgoingSequence uint32
	incomingSequence uint32

	reassembly       []byte
	fragmentSequence uint32
	fragmenting      bool

	// Dropped accumulates the sequence gaps observed on accepted packets
	// (seq - incoming_sequence - 1): the count of peer packets that were
	// lost or arrived too late to be accepted.
	Dropped int
}

// NewNetChan creates a NetChan for remote, with outgoing sequence starting
// at 1 and incoming sequence starting at 0 as spec requires.
func NewNetChan(remote *net.UDPAddr, qport uint16) *NetChan {
	return &NetChan{
		RemoteAddr:       remote,
		Qport:            qport,
		outgoingSequence: 1,
	}
}

// OutgoingSequence returns the sequence number that will be stamped on
// the next transmit call. Used by the session layer as the message-number
// handle for the delta baseline scheme.
func (c *NetChan) OutgoingSequence() uint32 { return c.outgoingSequence }

// IncomingSequence returns the highest sequence this channel has accepted
// from the peer. The session layer treats this as an implicit
// acknowledgement of everything the peer has sent up to and including it.
func (c *NetChan) IncomingSequence() uint32 { return c.incomingSequence }

func putHeader(buf []byte, seq uint32, qport uint16) {
	binary.LittleEndian.PutUint32(buf[headerSeq:], seq)
	binary.LittleEndian.PutUint16(buf[headerQport:], qport)
}

// Transmit frames payload into one or more outbound packets. Single-packet
// payloads (len < FragmentSize) are emitted whole; larger payloads are
// split into FragmentSize chunks, each tagged with FragmentBit plus a
// frag_start/frag_length pair. A message is complete only once a fragment
// shorter than FragmentSize goes out, so a payload that is an exact
// multiple of FragmentSize gets a trailing zero-length fragment as its
// terminator. OutgoingSequence advances exactly once per message,
// regardless of how many fragments it took.
func (c *NetChan) Transmit(payload []byte) [][]byte {
	seq := c.outgoingSequence
	c.outgoingSequence++

	if len(payload) < FragmentSize {
		pkt := make([]byte, headerLen+len(payload))
		putHeader(pkt, seq, c.Qport)
		copy(pkt[headerLen:], payload)
		return [][]byte{pkt}
	}

	var packets [][]byte
	fragSeq := seq | FragmentBit
	for start := 0; ; {
		end := start + FragmentSize
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[start:end]
		pkt := make([]byte, fragHeaderLen+len(chunk))
		putHeader(pkt, fragSeq, c.Qport)
		binary.LittleEndian.PutUint16(pkt[fragHeaderStart:], uint16(start))
		binary.LittleEndian.PutUint16(pkt[fragHeaderLength:], uint16(len(chunk)))
		copy(pkt[fragHeaderLen:], chunk)
		packets = append(packets, pkt)
		start = end
		if len(chunk) < FragmentSize {
			return packets
		}
	}
}

// ProcessPacket parses one inbound datagram. It returns OutcomeComplete
// with payload set to the reassembled message body when a message (single
// packet or final fragment) finishes; OutcomePending while a fragmented
// message is still being assembled; OutcomeDropped for stale, duplicate,
// or too-short packets; and OutcomeFragmentBroken when a fragment arrives
// at an unexpected offset (the in-flight reassembly is discarded).
//
// ProcessPacket never panics on malformed input; untrusted bytes are
// simply classified as dropped.
func (c *NetChan) ProcessPacket(raw []byte) ([]byte, PacketOutcome) {
	if len(raw) < headerLen {
		return nil, OutcomeDropped
	}

	rawSeq := binary.LittleEndian.Uint32(raw[headerSeq:])
	fragmented := rawSeq&FragmentBit != 0
	seq := rawSeq &^ FragmentBit

	if seq <= c.incomingSequence {
		return nil, OutcomeDropped
	}

	if !fragmented {
		c.Dropped += int(seq - c.incomingSequence - 1)
		c.incomingSequence = seq
		c.fragmenting = false
		c.reassembly = nil
		return raw[headerLen:], OutcomeComplete
	}

	if len(raw) < fragHeaderLen {
		return nil, OutcomeDropped
	}
	fragStart := int(binary.LittleEndian.Uint16(raw[fragHeaderStart:]))
	fragLength := int(binary.LittleEndian.Uint16(raw[fragHeaderLength:]))
	chunk := raw[fragHeaderLen:]
	if len(chunk) != fragLength {
		return nil, OutcomeDropped
	}

	if !c.fragmenting || seq != c.fragmentSequence {
		c.fragmenting = true
		c.fragmentSequence = seq
		c.reassembly = c.reassembly[:0]
	}

	if fragStart != len(c.reassembly) {
		c.fragmenting = false
		c.reassembly = nil
		return nil, OutcomeFragmentBroken
	}

	if len(c.reassembly)+fragLength > reassemblyCap {
		c.fragmenting = false
		c.reassembly = nil
		return nil, OutcomeDropped
	}
	c.reassembly = append(c.reassembly, chunk...)

	if fragLength == FragmentSize {
		return nil, OutcomePending
	}

	c.Dropped += int(seq - c.incomingSequence - 1)
	c.incomingSequence = seq
	c.fragmenting = false
	complete := make([]byte, len(c.reassembly))
	copy(complete, c.reassembly)
	c.reassembly = nil
	return complete, OutcomeComplete
}
