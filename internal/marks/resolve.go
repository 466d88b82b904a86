package marks

import (
	"fmt"
	"image"
	"math"

	"github.com/Gowithe/scangrade-thai/internal/imaging"
	"github.com/Gowithe/scangrade-thai/internal/template"
)

// DefaultMaxSlotDistance is the largest distance, in canonical pixels, between
// a detection centre and the slot it is assigned to.
const DefaultMaxSlotDistance = 150.0

// Accepted is a detection that was assigned to a mapped slot.
type Accepted struct {
	Detection
	SlotID   int    `json:"slot_id"`
	Question int    `json:"question"`
	Option   string `json:"option"`
}

// Resolution is the outcome of resolving one sheet.
type Resolution struct {
	Answers AnswerSet

	// Marks holds, per question, the strongest confidence seen for each
	// marked option.
	Marks map[int]map[string]float64

	// Accepted lists the detections assigned to a mapped slot, in input
	// order.
	Accepted []Accepted

	// Discarded counts detections too far from every slot or assigned to an
	// unmapped slot.
	Discarded int

	// Annotated is a review copy of the canonical image, nil when no image
	// was given.
	Annotated *image.NRGBA
}

// NearestSlot returns the ID of the slot closest to (x, y), provided its
// distance is strictly less than maxDist. Ties go to the earlier slot.
func NearestSlot(x, y float64, slots []template.Slot, maxDist float64) (int, bool) {
	best := -1
	bestDist := maxDist * maxDist
	for i, s := range slots {
		dx, dy := s.X-x, s.Y-y
		if d := dx*dx + dy*dy; d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return 0, false
	}
	return slots[best].ID, true
}

// Resolve turns raw detections into one decided answer per question.
//
// Each detection is assigned to the nearest slot within maxSlotDistance and
// mapped to its question and option; anything else is discarded. Per
// question and option the highest confidence is kept, a later detection
// replacing it only when strictly greater. A question with one marked option
// resolves to that option, with two or more to Multi whatever their
// confidences, and with none stays blank.
//
// Resolve never fails. A nil template leaves every question blank and
// discards every detection. When canonical is non-nil, the result carries an
// annotated copy with every slot dotted and every accepted detection boxed
// and labelled.
func Resolve(canonical image.Image, detections []Detection, tpl *template.Template, maxSlotDistance float64) *Resolution {
	if maxSlotDistance <= 0 {
		maxSlotDistance = DefaultMaxSlotDistance
	}

	res := &Resolution{
		Answers: make(AnswerSet),
		Marks:   make(map[int]map[string]float64),
	}
	if tpl == nil {
		res.Discarded = len(detections)
		if canonical != nil {
			res.Annotated = imaging.NewAnnotator(canonical).Image()
		}
		return res
	}

	for _, d := range detections {
		xc, yc := d.Box.Center()
		slotID, ok := NearestSlot(xc, yc, tpl.Slots, maxSlotDistance)
		if !ok {
			res.Discarded++
			continue
		}
		pos, ok := tpl.Lookup(slotID)
		if !ok {
			res.Discarded++
			continue
		}

		opts := res.Marks[pos.Question]
		if opts == nil {
			opts = make(map[string]float64)
		}
		// Unrecorded options count as 0, so non-positive confidences never
		// register a mark.
		if d.Confidence > opts[pos.Option] {
			opts[pos.Option] = d.Confidence
			res.Marks[pos.Question] = opts
		}

		res.Accepted = append(res.Accepted, Accepted{
			Detection: d,
			SlotID:    slotID,
			Question:  pos.Question,
			Option:    pos.Option,
		})
	}

	for q, opts := range res.Marks {
		if len(opts) > 1 {
			res.Answers[q] = Multi
			continue
		}
		for opt := range opts {
			res.Answers[q] = opt
		}
	}

	if canonical != nil {
		res.Annotated = annotate(canonical, tpl, res.Accepted)
	}
	return res
}

func annotate(canonical image.Image, tpl *template.Template, accepted []Accepted) *image.NRGBA {
	a := imaging.NewAnnotator(canonical)
	for _, s := range tpl.Slots {
		a.Dot(s.X, s.Y, 3, imaging.SlotColor)
	}
	for _, m := range accepted {
		conf := m.Confidence
		if math.IsNaN(conf) {
			conf = 0
		}
		a.Rect(m.Box.Rect(), 2, imaging.ConfidenceColor(conf))
		xc, yc := m.Box.Center()
		a.Label(int(xc), int(yc), fmt.Sprintf("%d%s %.2f", m.Question, m.Option, m.Confidence), imaging.LabelColor)
	}
	return a.Image()
}
