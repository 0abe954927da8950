package types

// LegalCode identifies a named code within a jurisdiction. Created once at
// seeding and immutable thereafter.
type LegalCode struct {
	// ID is the stable identifier of the code (e.g., "civil-code").
	ID string `json:"id"`

	// Title is the official title of the code.
	Title string `json:"title"`

	// Jurisdiction names the enacting jurisdiction.
	Jurisdiction string `json:"jurisdiction,omitempty"`

	// Adopted is the date the base text of the code was adopted.
	Adopted Date `json:"adopted"`
}

// ArticleVersion is an immutable snapshot of an article's text, valid over the
// half-open interval [EffectiveFrom, EffectiveUntil). Versions are never
// updated or deleted; corrections are new versions.
type ArticleVersion struct {
	// Code is the owning LegalCode id.
	Code string `json:"code"`

	// Article is the article number, including optional sub-numbering
	// (e.g., "15" or "15.1").
	Article string `json:"article"`

	// Text is the full article text as in force over the interval.
	Text string `json:"text"`

	// EffectiveFrom is the first date the text is in force.
	EffectiveFrom Date `json:"effective_from"`

	// EffectiveUntil is the first date the text is no longer in force,
	// or nil while the version remains open.
	EffectiveUntil *Date `json:"effective_until,omitempty"`

	// ActID references the amendment act that produced this version.
	// Empty for versions created at seeding.
	ActID string `json:"act_id,omitempty"`
}

// Interval returns the validity interval of the version.
func (v ArticleVersion) Interval() Interval {
	return Interval{EffectiveFrom: v.EffectiveFrom, EffectiveUntil: v.EffectiveUntil}
}

// InForceAt reports whether the version's text was in force on date.
func (v ArticleVersion) InForceAt(date Date) bool {
	return v.Interval().Contains(date)
}

// Open reports whether the version is still in force.
func (v ArticleVersion) Open() bool {
	return v.EffectiveUntil == nil
}
