package prediction

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"phishguard/internal/domain/phishing"
	"phishguard/pkg/errors"
)

// Evaluation scores batch predictions against the CLASS_LABEL column.
// Phishing is the positive class. Ratios with a zero denominator are 0, and
// ROCAUC is NaN unless both classes occur among the labels.
type Evaluation struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int

	Accuracy  float64
	Precision float64
	Recall    float64
	F1        float64
	ROCAUC    float64
}

type scoredLabel struct {
	label  int
	pPhish float64
}

// evaluator accumulates labeled predictions for one batch run
type evaluator struct {
	eval   Evaluation
	scored []scoredLabel
}

func parseLabel(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || (v != 0 && v != 1) {
		return 0, errors.Wrapf(errors.ErrInvalidInput, "column %s: %q is not 0 or 1", phishing.ColumnLabel, s)
	}
	return int(v), nil
}

func (ev *evaluator) add(label int, p *phishing.Prediction) {
	switch {
	case label == phishing.ClassPhishing && p.IsPhishing:
		ev.eval.TruePositives++
	case label == phishing.ClassPhishing:
		ev.eval.FalseNegatives++
	case p.IsPhishing:
		ev.eval.FalsePositives++
	default:
		ev.eval.TrueNegatives++
	}
	ev.scored = append(ev.scored, scoredLabel{label: label, pPhish: p.PhishingProbability})
}

func (ev *evaluator) finish() *Evaluation {
	e := ev.eval
	tp, fp, tn, fn := float64(e.TruePositives), float64(e.FalsePositives), float64(e.TrueNegatives), float64(e.FalseNegatives)

	e.Accuracy = ratio(tp+tn, tp+fp+tn+fn)
	e.Precision = ratio(tp, tp+fp)
	e.Recall = ratio(tp, tp+fn)
	e.F1 = ratio(2*e.Precision*e.Recall, e.Precision+e.Recall)
	e.ROCAUC = rocAUC(ev.scored)
	return &e
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// rocAUC is the Mann-Whitney U statistic normalised by nPos*nNeg. Tied
// scores share their average rank.
func rocAUC(scored []scoredLabel) float64 {
	sorted := append([]scoredLabel(nil), scored...)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].pPhish < sorted[b].pPhish })

	var nPos, nNeg, posRankSum float64
	for i := 0; i < len(sorted); {
		j := i
		for j < len(sorted) && sorted[j].pPhish == sorted[i].pPhish {
			j++
		}
		// ranks i+1..j
		rank := float64(i+1+j) / 2
		for _, s := range sorted[i:j] {
			if s.label == phishing.ClassPhishing {
				nPos++
				posRankSum += rank
			} else {
				nNeg++
			}
		}
		i = j
	}

	if nPos == 0 || nNeg == 0 {
		return math.NaN()
	}
	return (posRankSum - nPos*(nPos+1)/2) / (nPos * nNeg)
}
