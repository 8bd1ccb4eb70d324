package relayer

// RemoveQuotedPrintableSoftBreaks strips quoted-printable soft line breaks
// ("=" at end of line, RFC 2045 Section 6.7) so the circuit sees the
// logical body text. Hard breaks and all other bytes pass through.
func RemoveQuotedPrintableSoftBreaks(body []byte) []byte {
	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] == '=' {
			if i+2 < len(body) && body[i+1] == '\r' && body[i+2] == '\n' {
				i += 2
				continue
			}
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
				continue
			}
			// A trailing "=" with nothing after it is a soft break cut
			// off at the end of input.
			if i == len(body)-1 {
				continue
			}
			if i+2 == len(body) && body[i+1] == '\r' {
				i++
				continue
			}
		}
		out = append(out, body[i])
	}
	return out
}
