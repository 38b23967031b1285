package suggest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ppiankov/storyqa/internal/model"
)

// Tips returns canned improvement advice for unfavourable verdicts.
// Absent verdicts contribute nothing.
func Tips(verdicts model.VerdictMap) []string {
	var tips []string
	if v, ok := verdicts.Get(model.CriterionAmbiguity); ok && v == model.Ambiguous {
		tips = append(tips,
			"Ensure the user story clearly states who the user is and what they need.",
			"Avoid vague terms and be specific about the requirements.",
		)
	}
	if v, ok := verdicts.Get(model.CriterionWellFormed); ok && v == model.PoorlyFormed {
		tips = append(tips, `Ensure that the user story follows the format: "As a [role], I want [goal] so that [reason]."`)
	}
	return tips
}

// Fingerprint identifies a (story text, verdict snapshot) pair. Any change
// to the text or to any verdict yields a different value.
func Fingerprint(text string, verdicts model.VerdictMap) string {
	var b strings.Builder
	b.WriteString(text)
	b.WriteByte(0)
	for _, c := range model.AllCriteria() {
		if v, ok := verdicts.Get(c); ok {
			fmt.Fprintf(&b, "%s=%d;", c, v)
		} else {
			fmt.Fprintf(&b, "%s=-;", c)
		}
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
