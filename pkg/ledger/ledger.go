// Package ledger drives the multi-exchange signing protocol of the
// Handshake Ledger app: version and public key queries, transaction
// streaming and per-input signature retrieval.
//
// The engine owns frame sequencing and response interpretation over an
// opaque transport. Exactly one operation may be in flight per device
// channel; a second operation started before the first completes fails
// with a UsageError before anything touches the transport. A failed
// exchange aborts the whole multi-step operation with no mid-stream
// resumption: the caller restarts from the beginning.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/boymanjor/hns-ledger/pkg/apdu"
	"github.com/boymanjor/hns-ledger/pkg/frame"
	"github.com/boymanjor/hns-ledger/pkg/transport"
	"github.com/boymanjor/hns-ledger/pkg/wire"
)

// Config assembles an engine around a transport.
type Config struct {
	// Transport is the device channel. Required.
	Transport transport.Transport

	// Channel is the frame channel id. Zero selects the default.
	Channel uint16

	// Logger receives operation logs. Nil selects the standard logger.
	Logger logrus.FieldLogger

	// Timeout bounds one exchange, forwarded to Transport.Configure.
	// Zero keeps the transport's default.
	Timeout time.Duration
}

// HSD is the protocol engine for one exclusively-owned device channel.
type HSD struct {
	transport transport.Transport
	codec     frame.Codec
	log       logrus.FieldLogger

	mu      sync.Mutex
	inOp    string
	version string
}

// New validates cfg and returns an engine. The transport is configured
// with the engine's logger and the caller's timeout.
func New(cfg Config) (*HSD, error) {
	if cfg.Transport == nil {
		return nil, usageErrf("a transport is required")
	}

	channel := cfg.Channel
	if channel == 0 {
		channel = frame.DefaultChannel
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	cfg.Transport.Configure(transport.Config{
		Timeout: cfg.Timeout,
		Logger:  log,
	})

	return &HSD{
		transport: cfg.Transport,
		codec:     frame.NewCodec(channel),
		log:       log,
	}, nil
}

// Open opens the underlying device channel.
func (h *HSD) Open() error { return h.transport.Open() }

// Close closes the underlying device channel.
func (h *HSD) Close() error { return h.transport.Close() }

// FirmwareVersion returns the app version cached by the last successful
// GetAppVersion, or the empty string before the first query.
func (h *HSD) FirmwareVersion() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}

// GetAppVersion queries the running app's semantic version, e.g. "1.0.3".
// The result is cached so callers can gate on firmware capabilities.
func (h *HSD) GetAppVersion() (string, error) {
	if err := h.acquire("getAppVersion"); err != nil {
		return "", err
	}
	defer h.release()

	resp, err := h.exchange(apdu.AppVersion())
	if err != nil {
		return "", err
	}
	version, err := apdu.ParseAppVersion(resp)
	if err != nil {
		return "", err
	}

	h.mu.Lock()
	h.version = version
	h.mu.Unlock()

	h.log.WithField("version", version).Debug("app version retrieved")
	return version, nil
}

// GetPublicKey derives the public key at path, optionally requiring
// on-device confirmation and optionally returning extended key metadata
// and the bech32 address.
func (h *HSD) GetPublicKey(path apdu.Path, opts apdu.PublicKeyOptions) (*apdu.PublicKeyResult, error) {
	cmd, err := apdu.PublicKey(path, opts)
	if err != nil {
		return nil, err
	}

	if err := h.acquire("getPublicKey"); err != nil {
		return nil, err
	}
	defer h.release()

	resp, err := h.exchange(cmd)
	if err != nil {
		return nil, err
	}

	res, err := apdu.ParsePublicKey(resp, opts)
	if err != nil {
		return nil, err
	}
	h.log.WithField("path", path).Debug("public key retrieved")
	return res, nil
}

// StreamTransaction serializes the transaction preamble and streams it to
// the device for parsing. Every chunk must be acknowledged; any
// non-success response aborts the stream and the transaction must be
// streamed again from the start.
func (h *HSD) StreamTransaction(tx *wire.TX) error {
	if err := h.acquire("streamTransaction"); err != nil {
		return err
	}
	defer h.release()

	return h.streamTransaction(tx)
}

// GetInputSignature streams the input's previous-redeem script and
// returns the device's signature (DER plus sighash byte). The transaction
// must have been streamed on this channel first.
func (h *HSD) GetInputSignature(in *SigningInput) ([]byte, error) {
	if err := h.acquire("getInputSignature"); err != nil {
		return nil, err
	}
	defer h.release()

	return h.getInputSignature(in)
}

// SignTransaction streams the transaction once, then retrieves a
// signature for every signing input in order. Signatures are keyed by
// outpoint key.
func (h *HSD) SignTransaction(tx *wire.TX, inputs []*SigningInput) (map[string][]byte, error) {
	if len(inputs) == 0 {
		return nil, usageErrf("no signing inputs provided")
	}

	if err := h.acquire("signTransaction"); err != nil {
		return nil, err
	}
	defer h.release()

	if err := h.streamTransaction(tx); err != nil {
		return nil, err
	}

	sigs := make(map[string][]byte, len(inputs))
	for _, in := range inputs {
		sig, err := h.getInputSignature(in)
		if err != nil {
			return nil, err
		}
		sigs[in.OutpointKey()] = sig
	}
	return sigs, nil
}

func (h *HSD) streamTransaction(tx *wire.TX) error {
	preamble, err := tx.Preamble()
	if err != nil {
		return err
	}

	h.log.WithField("size", len(preamble)).Debug("streaming transaction preamble")

	tag := apdu.ChunkFirst
	for off, n := 0, 0; off < len(preamble); off, n = off+apdu.MaxTxPacket, n+1 {
		end := off + apdu.MaxTxPacket
		if end > len(preamble) {
			end = len(preamble)
		}

		cmd, err := apdu.TransactionChunk(tag, preamble[off:end])
		if err != nil {
			return err
		}
		resp, err := h.exchange(cmd)
		if err != nil {
			return err
		}
		if err := apdu.ParseAck(apdu.INSSendTransaction, resp); err != nil {
			return fmt.Errorf("transaction stream aborted at chunk %d: %w", n, err)
		}
		tag = apdu.ChunkContinue
	}
	return nil
}

func (h *HSD) getInputSignature(in *SigningInput) ([]byte, error) {
	// Usage errors (missing redeem, missing public key) surface here,
	// before the first exchange.
	redeem, err := in.PrevRedeem()
	if err != nil {
		return nil, err
	}

	// The script stream is the redeem script prefixed with its own
	// varint size header.
	stream := wire.AppendVarint(nil, uint64(len(redeem)))
	stream = append(stream, redeem...)

	total := (len(stream) + apdu.MaxScriptPacket - 1) / apdu.MaxScriptPacket

	h.log.WithFields(logrus.Fields{
		"input":  in.OutpointKey(),
		"chunks": total,
	}).Debug("retrieving input signature")

	var sig []byte
	for i := 0; i < total; i++ {
		end := (i + 1) * apdu.MaxScriptPacket
		if end > len(stream) {
			end = len(stream)
		}
		chunk := stream[i*apdu.MaxScriptPacket : end]

		// Chunk framing depends only on position; the expected
		// response shape depends only on whether this is the final
		// chunk. A single-chunk script is first and last at once, so
		// its immediate response carries the signature.
		var cmd *apdu.Command
		if i == 0 {
			cmd, err = apdu.InputSignatureFirst(in.Path(), in.Coin().Value, in.Sighash(), chunk)
		} else {
			cmd, err = apdu.InputSignatureMore(chunk)
		}
		if err != nil {
			return nil, err
		}

		shape := apdu.ExpectAck
		if i == total-1 {
			shape = apdu.ExpectSignature
		}

		resp, err := h.exchange(cmd)
		if err != nil {
			return nil, err
		}

		switch shape {
		case apdu.ExpectAck:
			if err := apdu.ParseAck(apdu.INSGetInputSignature, resp); err != nil {
				return nil, fmt.Errorf("signature retrieval aborted at chunk %d: %w", i, err)
			}
		case apdu.ExpectSignature:
			sig, err = apdu.ParseSignature(resp)
			if err != nil {
				return nil, err
			}
		}
	}
	return sig, nil
}

// exchange performs one framed APDU round trip.
func (h *HSD) exchange(cmd *apdu.Command) ([]byte, error) {
	raw, err := cmd.Encode()
	if err != nil {
		return nil, err
	}
	out, err := h.codec.EncodeStream(raw)
	if err != nil {
		return nil, err
	}

	respStream, err := h.transport.Exchange(out)
	if err != nil {
		return nil, err
	}
	return h.codec.Decode(respStream)
}

// acquire marks the channel busy for one operation. A channel already
// running an operation refuses the second one before any transport call.
func (h *HSD) acquire(op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inOp != "" {
		return usageErrf("operation %s already in flight, channel allows one at a time", h.inOp)
	}
	h.inOp = op
	return nil
}

func (h *HSD) release() {
	h.mu.Lock()
	h.inOp = ""
	h.mu.Unlock()
}
