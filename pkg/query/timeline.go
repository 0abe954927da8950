package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/coolbeans/consolex/pkg/types"
)

// TimelineEventType indicates the kind of event in an article's history.
type TimelineEventType int

const (
	// EventEnacted represents the article's first version.
	EventEnacted TimelineEventType = iota
	// EventAmended represents a superseding version.
	EventAmended
	// EventRepealed represents termination without a successor.
	EventRepealed
	// EventReinstated represents a version following a repeal gap.
	EventReinstated
)

// String returns a human-readable label for the event type.
func (t TimelineEventType) String() string {
	switch t {
	case EventEnacted:
		return "Enacted"
	case EventAmended:
		return "Amended"
	case EventRepealed:
		return "Repealed"
	case EventReinstated:
		return "Reinstated"
	default:
		return "Unknown"
	}
}

// MarshalJSON implements json.Marshaler for TimelineEventType.
func (t TimelineEventType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// TimelineEvent is one event in an article's legislative history.
type TimelineEvent struct {
	// Date is when the event took force.
	Date types.Date `json:"date"`

	// EventType classifies the event.
	EventType TimelineEventType `json:"event_type"`

	// ActID references the amendment act behind the event, empty for the
	// seeded base version.
	ActID string `json:"act_id,omitempty"`

	// Text is the version text the event put in force, empty for repeals.
	Text string `json:"text,omitempty"`
}

// ArticleTimeline is the chronological history of one article.
type ArticleTimeline struct {
	// Code is the legal code identifier.
	Code string `json:"code"`

	// Article is the article number.
	Article string `json:"article"`

	// Events lists the article's history oldest first.
	Events []TimelineEvent `json:"events"`

	// InForce reports whether the article has a current version.
	InForce bool `json:"in_force"`
}

// Timeline builds the article's history from its version chain: enactment,
// each amendment, repeals and reinstatements after gaps.
func (r *Resolver) Timeline(article string) (ArticleTimeline, error) {
	chain, err := r.store.History(article)
	if err != nil {
		return ArticleTimeline{}, err
	}

	code, _ := r.store.Code()
	tl := ArticleTimeline{Code: code.ID, Article: article}

	for i, v := range chain {
		eventType := EventAmended
		switch {
		case i == 0:
			eventType = EventEnacted
		case chain[i-1].EffectiveUntil.Before(v.EffectiveFrom):
			// A gap before this version means the article stood
			// repealed in between.
			eventType = EventReinstated
		}
		tl.Events = append(tl.Events, TimelineEvent{
			Date: v.EffectiveFrom, EventType: eventType, ActID: v.ActID, Text: v.Text,
		})

		terminated := !v.Open()
		superseded := i+1 < len(chain) && chain[i+1].EffectiveFrom.Equal(*v.EffectiveUntil)
		if terminated && !superseded {
			tl.Events = append(tl.Events, TimelineEvent{
				Date: *v.EffectiveUntil, EventType: EventRepealed,
			})
		}
	}

	tl.InForce = len(chain) > 0 && chain[len(chain)-1].Open()
	return tl, nil
}

// Render formats the timeline as text, one event per line.
func (tl ArticleTimeline) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Article %s (%s)\n", tl.Article, tl.Code)
	for _, e := range tl.Events {
		fmt.Fprintf(&b, "  %s  %-11s", e.Date, e.EventType)
		if e.ActID != "" {
			fmt.Fprintf(&b, "  act %s", e.ActID)
		}
		b.WriteString("\n")
	}
	if tl.InForce {
		b.WriteString("  currently in force\n")
	} else if len(tl.Events) > 0 {
		b.WriteString("  currently repealed\n")
	}
	return b.String()
}

// articleLess orders article numbers numerically by dotted segment, so "9.1"
// sorts between "9" and "10".
func articleLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr != nil || berr != nil {
			if as[i] != bs[i] {
				return as[i] < bs[i]
			}
			continue
		}
		if an != bn {
			return an < bn
		}
	}
	return len(as) < len(bs)
}
