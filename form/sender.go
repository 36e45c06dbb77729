// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package form

import (
	"strconv"
	"strings"
	"time"

	"code.hybscloud.com/comform/stream"
)

// Sender transmits one form at a time over a stream adapter, following the
// title/body/marker/appendix wire sequence with a per-step acknowledgement.
type Sender struct {
	s          *stream.Adapter
	separation string
	timeout    time.Duration
	adjustBody bool
}

// NewSender validates separation (non-empty, single line) and returns a
// Sender bound to s.
func NewSender(s *stream.Adapter, separation string, timeout time.Duration, adjustBody bool) (*Sender, error) {
	if separation == "" || strings.Contains(separation, "\n") {
		return nil, ErrInvalidSeparation
	}
	return &Sender{s: s, separation: separation, timeout: timeout, adjustBody: adjustBody}, nil
}

// Send transmits f: title, then each body line, then the separation+length
// marker (unacknowledged), then the encoded appendix bytes.
func (sd *Sender) Send(f *Form) error {
	if !f.Valid() {
		return ErrInvalidForm
	}

	lines := f.Lines()
	adjusted := make([]string, len(lines))
	for i, ln := range lines {
		if strings.HasPrefix(ln, sd.separation) {
			if !sd.adjustBody {
				return ErrBodyCollision
			}
			adjusted[i] = " " + ln
		} else {
			adjusted[i] = ln
		}
	}

	if err := sd.s.Send([]byte(f.Title + "\n")); err != nil {
		return err
	}
	if err := sd.recvAck(); err != nil {
		return err
	}

	for _, ln := range adjusted {
		if err := sd.s.Send([]byte(ln + "\n")); err != nil {
			return err
		}
		if err := sd.recvAck(); err != nil {
			return err
		}
	}

	marker := sd.separation + strconv.Itoa(len(f.AppendixBytes())) + "\n"
	if err := sd.s.Send([]byte(marker)); err != nil {
		return err
	}

	if err := sd.s.Send(f.AppendixBytes()); err != nil {
		return err
	}
	return sd.recvAck()
}

func (sd *Sender) recvAck() error {
	b, err := sd.s.RecvExact(3, sd.timeout)
	if err != nil {
		return err
	}
	if string(b) != "ack" {
		return ErrProtocolViolation
	}
	return nil
}
