// Package match turns classification results into look-alike replies.
package match

import (
	"sort"
	"strings"

	"github.com/aldenlin/celebmatch-linebot-go/internal/vision"
)

// Branch is the outcome of interpreting a classification result.
type Branch string

// Interpretation branches.
const (
	BranchCarousel      Branch = "carousel"       // celebrity matches and a person in frame
	BranchCelebrityOnly Branch = "celebrity_only" // matches but no person detected
	BranchPersonOnly    Branch = "person_only"    // a person but no celebrity matches
	BranchNeither       Branch = "neither"        // nothing usable
)

// Interpretation is the decision derived from one classification result.
type Interpretation struct {
	Branch      Branch
	IsCelebrity bool
	IsPerson    bool
	Face        *vision.Face

	// Matches is the primary (celebrity) result set sorted descending
	// by confidence.
	Matches []vision.Class

	// BestSecondaryLabel is the top label from the generic classifier
	// set, used by the text branches.
	BestSecondaryLabel string

	// TopLabel is the highest-confidence label across all sets.
	TopLabel string
}

// Interpret applies the classification decision table. A detected face is
// the primary personhood signal. faceChecked reports that the detector ran
// and gave a definitive answer, so a nil face then means no face in frame.
// Without it (detector disabled or unavailable) the heuristic falls back
// to a "person" label anywhere in the result or a top confidence above
// the threshold.
func Interpret(results []vision.ClassifierResult, face *vision.Face, faceChecked bool, threshold float64) Interpretation {
	interp := Interpretation{
		IsCelebrity: len(results) > 1,
		Face:        face,
	}

	primary, secondary := splitSets(results)
	interp.Matches = sortedByScore(primary)
	interp.BestSecondaryLabel = topLabel(sortedByScore(secondary))
	interp.TopLabel = overallTopLabel(results)

	maxConfidence := 0.0
	if len(interp.Matches) > 0 {
		maxConfidence = interp.Matches[0].Score
	}

	switch {
	case face != nil:
		interp.IsPerson = true
	case faceChecked:
		// The detector ran and saw no face.
	default:
		interp.IsPerson = hasPersonLabel(results) || maxConfidence > threshold
	}

	switch {
	case interp.IsCelebrity && interp.IsPerson:
		interp.Branch = BranchCarousel
	case interp.IsCelebrity:
		interp.Branch = BranchCelebrityOnly
	case interp.IsPerson:
		interp.Branch = BranchPersonOnly
	default:
		interp.Branch = BranchNeither
	}
	return interp
}

// splitSets separates the celebrity classifier set from the generic one.
// The generic set is named "default" by the service; the celebrity set is
// the first set with any other id.
func splitSets(results []vision.ClassifierResult) ([]vision.Class, []vision.Class) {
	var primary, secondary []vision.Class
	for _, set := range results {
		if isDefaultSet(set) {
			if secondary == nil {
				secondary = set.Classes
			}
			continue
		}
		if primary == nil {
			primary = set.Classes
		}
	}
	if primary == nil && len(results) > 0 {
		primary = results[0].Classes
	}
	return primary, secondary
}

func isDefaultSet(set vision.ClassifierResult) bool {
	return strings.EqualFold(set.ClassifierID, "default") || strings.EqualFold(set.Name, "default")
}

func sortedByScore(classes []vision.Class) []vision.Class {
	sorted := make([]vision.Class, len(classes))
	copy(sorted, classes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

func topLabel(classes []vision.Class) string {
	if len(classes) == 0 {
		return ""
	}
	return classes[0].Name
}

func overallTopLabel(results []vision.ClassifierResult) string {
	best := ""
	bestScore := -1.0
	for _, set := range results {
		for _, class := range set.Classes {
			if class.Score > bestScore {
				best = class.Name
				bestScore = class.Score
			}
		}
	}
	return best
}

func hasPersonLabel(results []vision.ClassifierResult) bool {
	for _, set := range results {
		for _, class := range set.Classes {
			if strings.EqualFold(class.Name, "person") {
				return true
			}
		}
	}
	return false
}
