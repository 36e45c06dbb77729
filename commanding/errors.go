// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package commanding

import "errors"

// ErrMalformedForm reports a received form that cannot be parsed as a call,
// result, or error form: wrong title, a missing required body key, a body
// line without exactly one ':', or an appendix of the wrong shape.
var ErrMalformedForm = errors.New("commanding: malformed form")
