// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package form

import (
	"strconv"
	"strings"
	"time"

	"code.hybscloud.com/comform/appendix"
	"code.hybscloud.com/comform/stream"
)

const defaultMaxLineBytes = 1024

// Receiver reconstructs one form at a time from a stream adapter, mirroring
// Sender's wire sequence.
type Receiver struct {
	s            *stream.Adapter
	separation   string
	timeout      time.Duration
	maxLineBytes int
	codec        appendix.Codec
}

// NewReceiver validates separation and returns a Receiver bound to s.
// maxLineBytes <= 0 selects the default per-line ceiling (1024).
func NewReceiver(s *stream.Adapter, separation string, timeout time.Duration, maxLineBytes int, codec appendix.Codec) (*Receiver, error) {
	if separation == "" || strings.Contains(separation, "\n") {
		return nil, ErrInvalidSeparation
	}
	if maxLineBytes <= 0 {
		maxLineBytes = defaultMaxLineBytes
	}
	return &Receiver{s: s, separation: separation, timeout: timeout, maxLineBytes: maxLineBytes, codec: codec}, nil
}

// Receive reads one complete form: title, body lines (each acknowledged),
// the unacknowledged separation+length marker, and the encoded appendix.
func (r *Receiver) Receive() (*Form, error) {
	titleLine, err := r.s.RecvLine(r.maxLineBytes, r.timeout)
	if err != nil {
		return nil, err
	}
	title := string(titleLine)
	if err := r.sendAck(); err != nil {
		return nil, err
	}

	var bodyLines []string
	appendixLen := -1
	for appendixLen < 0 {
		candidate, err := r.s.RecvLine(r.maxLineBytes, r.timeout)
		if err != nil {
			return nil, err
		}
		cand := string(candidate)
		if strings.HasPrefix(cand, r.separation) && len(cand) > len(r.separation) {
			suffix := cand[len(r.separation):]
			if n, perr := strconv.Atoi(suffix); perr == nil && n >= 0 {
				appendixLen = n
				break
			}
		}
		bodyLines = append(bodyLines, cand)
		if err := r.sendAck(); err != nil {
			return nil, err
		}
	}

	appendixBytes, err := r.s.RecvExact(appendixLen, r.timeout)
	if err != nil {
		return nil, err
	}
	if err := r.sendAck(); err != nil {
		return nil, err
	}

	body := strings.Join(bodyLines, "\n")
	return NewRaw(title, body, appendixBytes, r.codec), nil
}

func (r *Receiver) sendAck() error {
	return r.s.Send([]byte("ack"))
}
