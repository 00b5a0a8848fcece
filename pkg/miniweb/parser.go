package miniweb

import (
	"strconv"
	"time"
)

// parserState is the Request Parser's state, per §4.3. Driven byte by byte
// off the Session's input buffer; every byte either advances state,
// completes a token, or transitions to stateError. Unlike the teacher's
// http11.Parser (which buffers an entire request up to the blank line
// before tokenizing it in one pass over a completed buffer), this state
// machine must tolerate a request arriving one byte — or one TCP segment —
// at a time, so it resumes exactly where the last feed call left off rather
// than re-scanning from the start.
type parserState int

const (
	stateMethod parserState = iota
	stateURL
	stateProtocol
	stateCRLF1
	stateHeaderStart
	stateHeaderName
	stateHeaderColonSp
	stateHeaderValue
	stateCRLFTerminator
	stateBody
	stateError
)

func isPrintableNonSpace(b byte) bool { return b > 0x20 && b < 0x80 }
func isPrintableOrSpace(b byte) bool  { return b >= 0x20 && b < 0x80 }

// feed advances the parser over bytes already sitting in
// s.inBuffer[s.parsePos:s.inUsed]. It returns as soon as either the
// buffered bytes run out (more I/O needed) or a full request has been
// dispatched — it never starts tokenizing a second request while the
// first reply is still being built, per §1's pipelining Non-goal. Only
// called while s.ioState == ioReading.
func (s *Session) feed() error {
	for s.parsePos < s.inUsed {
		if s.parserState == stateBody {
			if s.consumeBody() {
				s.dispatch()
				s.shiftInputBuffer()
				return nil
			}
			continue
		}

		b := s.inBuffer[s.parsePos]

		switch s.parserState {
		case stateMethod:
			if !s.startCaptured {
				s.startTime = time.Now()
				s.startCaptured = true
			}
			if isPrintableNonSpace(b) {
				s.parsePos++
				continue
			}
			if b == ' ' {
				s.method = string(s.inBuffer[s.tokenStart:s.parsePos])
				s.parsePos++
				s.tokenStart = s.parsePos
				s.parserState = stateURL
				continue
			}
			return s.failParse()

		case stateURL:
			if isPrintableNonSpace(b) {
				s.parsePos++
				continue
			}
			if b == ' ' {
				s.fullURL = string(s.inBuffer[s.tokenStart:s.parsePos])
				s.parsePos++
				s.tokenStart = s.parsePos
				s.parserState = stateProtocol
				continue
			}
			return s.failParse()

		case stateProtocol:
			if isPrintableNonSpace(b) {
				s.parsePos++
				continue
			}
			if b == '\r' {
				s.protocol = string(s.inBuffer[s.tokenStart:s.parsePos])
				s.parsePos++
				s.parserState = stateCRLF1
				continue
			}
			return s.failParse()

		case stateCRLF1:
			if b == '\n' {
				s.parsePos++
				s.tokenStart = s.parsePos
				s.parserState = stateHeaderStart
				continue
			}
			return s.failParse()

		case stateHeaderStart:
			if b == '\r' {
				s.parsePos++
				s.parserState = stateCRLFTerminator
				continue
			}
			if isPrintableNonSpace(b) {
				s.tokenStart = s.parsePos
				s.parsePos++
				s.parserState = stateHeaderName
				continue
			}
			return s.failParse()

		case stateHeaderName:
			if b == ':' {
				name := s.inBuffer[s.tokenStart:s.parsePos]
				s.curHeaderListened = s.listenHeaders.Find(name)
				if s.curHeaderListened {
					s.curHeaderName = string(name)
				}
				s.parsePos++
				s.parserState = stateHeaderColonSp
				continue
			}
			if isPrintableNonSpace(b) {
				s.parsePos++
				continue
			}
			return s.failParse()

		case stateHeaderColonSp:
			if b == ' ' {
				s.parsePos++
				s.tokenStart = s.parsePos
				s.parserState = stateHeaderValue
				continue
			}
			return s.failParse()

		case stateHeaderValue:
			if b == '\r' {
				if s.curHeaderListened {
					value := string(s.inBuffer[s.tokenStart:s.parsePos])
					s.reqHeaders.add(s.curHeaderName, value)
				}
				s.curHeaderListened = false
				s.curHeaderName = ""
				s.parsePos++
				s.parserState = stateCRLF1
				continue
			}
			if isPrintableOrSpace(b) {
				s.parsePos++
				continue
			}
			return s.failParse()

		case stateCRLFTerminator:
			if b != '\n' {
				return s.failParse()
			}
			s.parsePos++
			s.beginBodyOrDispatch()
			if s.parserState != stateBody {
				s.shiftInputBuffer()
				return nil
			}

		default:
			return s.failParse()
		}
	}
	return nil
}

// consumeBody copies as many available bytes as needed/available into the
// request body buffer. Returns true once the body is fully read.
func (s *Session) consumeBody() bool {
	remaining := s.contentLength - s.contentRead
	avail := s.inUsed - s.parsePos
	n := remaining
	if avail < n {
		n = avail
	}
	copy(s.content[s.contentRead:s.contentRead+n], s.inBuffer[s.parsePos:s.parsePos+n])
	s.contentRead += n
	s.parsePos += n
	return s.contentRead >= s.contentLength
}

// beginBodyOrDispatch runs the cr-lf-terminator action from §4.3: parse
// Content-Length if present; if method is POST and content_length > 0,
// allocate the body and move to stateBody; otherwise dispatch immediately
// with an empty body.
func (s *Session) beginBodyOrDispatch() {
	s.contentLength = -1
	if raw, ok := s.reqHeaders.get("Content-Length"); ok {
		if n, err := strconv.Atoi(raw); err == nil {
			if n < 0 {
				n = 0
			}
			s.contentLength = n
		}
	}

	if s.method == "POST" && s.contentLength > 0 {
		s.content = make([]byte, s.contentLength)
		s.contentRead = 0
		s.parserState = stateBody
		return
	}

	s.dispatch()
}

// failParse transitions the parser to stateError. The caller (the event
// loop) treats this as a per-session fatal condition and closes the
// socket; see §7 tier 2.
func (s *Session) failParse() error {
	s.parserState = stateError
	return errParseSyntax
}

// shiftInputBuffer discards the bytes already consumed by the parser,
// moving any bytes read past the end of the current request (the start of
// a pipelined next request) to the front of the buffer for the next
// parse pass. Per §4.3: "After dispatch, consumed bytes are shifted off
// the front."
func (s *Session) shiftInputBuffer() {
	remaining := s.inUsed - s.parsePos
	if remaining > 0 {
		copy(s.inBuffer, s.inBuffer[s.parsePos:s.inUsed])
	}
	s.inUsed = remaining
	s.parsePos = 0
	s.tokenStart = 0
	s.parserState = stateMethod
	s.startCaptured = false
}
