package catastrophe

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

// Classifier assigns a bifurcation type to a detected transition from the
// local shape of the trajectory around it.
type Classifier interface {
	Name() string
	Classify(trajectory [][]float64, idx, window int) BifurcationType
}

var classifiers = map[string]func() Classifier{
	"shape": func() Classifier { return shapeClassifier{} },
	"none":  func() Classifier { return noneClassifier{} },
}

func GetClassifier(name string) (Classifier, error) {
	ctor, ok := classifiers[name]
	if !ok {
		return nil, fmt.Errorf("unknown classifier %q (have %v)", name, ListClassifiers())
	}
	return ctor(), nil
}

func ListClassifiers() []string {
	names := make([]string, 0, len(classifiers))
	for name := range classifiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// noneClassifier labels every point Unclassified. Useful when only detection
// matters and the shape heuristics would add noise.
type noneClassifier struct{}

func (noneClassifier) Name() string { return "none" }

func (noneClassifier) Classify([][]float64, int, int) BifurcationType { return Unclassified }

// shapeClassifier applies shape heuristics to the segments before and after
// the transition: a discontinuous gap reads as a fold, post-transition
// oscillation as a hopf, a variance blow-up as a cusp when the post segment
// is bimodal and a pitchfork otherwise. Anything else stays unclassified.
type shapeClassifier struct{}

func (shapeClassifier) Name() string { return "shape" }

func (shapeClassifier) Classify(trajectory [][]float64, idx, window int) BifurcationType {
	half := window / 2
	preLo := idx - half
	if preLo < 0 {
		preLo = 0
	}
	postHi := idx + half
	if postHi > len(trajectory) {
		postHi = len(trajectory)
	}
	if idx-preLo < 5 || postHi-idx < 5 || idx < 1 {
		return Unclassified
	}

	pre := trajectory[preLo:idx]
	post := trajectory[idx:postHi]

	gap := foundation.Distance(trajectory[idx], trajectory[idx-1], foundation.Euclidean)
	typical := stat.Mean(stepSizes(trajectory), nil)
	if gap > 5*typical {
		return Fold
	}

	if oscillatory(foundation.Column(post, 0)) {
		return Hopf
	}

	preVar := meanVariance(pre)
	postVar := meanVariance(post)
	if postVar > 2*preVar {
		if bimodal(foundation.Column(post, 0)) {
			return Cusp
		}
		return Pitchfork
	}

	return Unclassified
}

func meanVariance(segment [][]float64) float64 {
	total := 0.0
	for j := 0; j < len(segment[0]); j++ {
		total += stat.Variance(foundation.Column(segment, j), nil)
	}
	return total / float64(len(segment[0]))
}

// bimodal splits the values at their median and checks whether the two halves
// form well-separated clusters.
func bimodal(values []float64) bool {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if mid < 3 || len(sorted)-mid < 3 {
		return false
	}

	loMean, loSD := stat.MeanStdDev(sorted[:mid], nil)
	hiMean, hiSD := stat.MeanStdDev(sorted[mid:], nil)
	if math.IsNaN(loSD) || math.IsNaN(hiSD) {
		return false
	}
	return hiMean-loMean > 1.5*(loSD+hiSD)
}
