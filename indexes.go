package relayer

import "regexp"

// Patterns locates the circuit-relevant substrings inside the canonical
// header. The defaults fit relaxed-canonicalized headers; deployments with
// different subject formats can swap individual patterns.
type Patterns struct {
	// FromAddr captures the address inside the from: field.
	FromAddr *regexp.Regexp

	// Subject matches the subject: field.
	Subject *regexp.Regexp

	// Domain captures the domain of the From address.
	Domain *regexp.Regexp

	// Timestamp captures the t= value of the dkim-signature field.
	Timestamp *regexp.Regexp

	// Address matches an Ethereum-style address in the subject.
	Address *regexp.Regexp

	// Pubkey matches a 32-byte hex public key in the subject.
	Pubkey *regexp.Regexp

	// Validator matches a bech32 validator operator address in the
	// subject.
	Validator *regexp.Regexp
}

// DefaultPatterns returns the patterns for relaxed canonical headers.
func DefaultPatterns() *Patterns {
	return &Patterns{
		FromAddr:  regexp.MustCompile(`(?m)^from:[^\r\n]*?([A-Za-z0-9._%+\-=]+@[A-Za-z0-9.\-]+)`),
		Subject:   regexp.MustCompile(`(?m)^(subject:[^\r\n]*)`),
		Domain:    regexp.MustCompile(`(?m)^from:[^\r\n]*?[A-Za-z0-9._%+\-=]+@([A-Za-z0-9.\-]+)`),
		Timestamp: regexp.MustCompile(`(?m)^dkim-signature:[^\r\n]*?[; ]t=([0-9]+);`),
		Address:   regexp.MustCompile(`0x[0-9a-fA-F]{40}`),
		Pubkey:    regexp.MustCompile(`0x[0-9a-fA-F]{64}`),
		Validator: regexp.MustCompile(`[a-z]+valoper1[02-9ac-hj-np-z]{38}`),
	}
}

// HeaderIndexes are byte offsets into the canonical header. Subject-scoped
// offsets (Timestamp, Address, Pubkey, Validator) are relative to Subject;
// all are zero when the pattern does not match.
type HeaderIndexes struct {
	FromAddr  int
	Subject   int
	Domain    int
	Timestamp int
	Address   int
	Pubkey    int
	Validator int
}

// Indexes locates every pattern in the canonical header.
func (p *Patterns) Indexes(header string) HeaderIndexes {
	idx := HeaderIndexes{
		FromAddr: submatchStart(p.FromAddr, header),
		Subject:  submatchStart(p.Subject, header),
		Domain:   submatchStart(p.Domain, header),
	}

	idx.Timestamp = relativeToSubject(submatchStart(p.Timestamp, header), idx.Subject)
	idx.Address = relativeToSubject(matchStart(p.Address, header), idx.Subject)
	idx.Pubkey = relativeToSubject(matchStart(p.Pubkey, header), idx.Subject)
	idx.Validator = relativeToSubject(matchStart(p.Validator, header), idx.Subject)

	return idx
}

// submatchStart returns the start offset of the first capture group, or 0
// when the pattern does not match.
func submatchStart(re *regexp.Regexp, s string) int {
	loc := re.FindStringSubmatchIndex(s)
	if loc == nil || len(loc) < 4 || loc[2] < 0 {
		return 0
	}
	return loc[2]
}

// matchStart returns the start offset of the whole match, or 0 when the
// pattern does not match.
func matchStart(re *regexp.Regexp, s string) int {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return 0
	}
	return loc[0]
}

// relativeToSubject rebases an absolute offset onto the subject field.
// Missing matches stay 0, and an offset before the subject clamps to 0
// instead of wrapping negative.
func relativeToSubject(idx, subject int) int {
	if idx == 0 || idx < subject {
		return 0
	}
	return idx - subject
}
