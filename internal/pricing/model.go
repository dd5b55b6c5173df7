package pricing

import "math"

// softmax turns scores into probabilities with the given temperature.
func softmax(scores []float64, temperature float64) []float64 {
	if temperature <= 0 {
		temperature = 1
	}
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	out := make([]float64, len(scores))
	sum := 0.0
	for i, s := range scores {
		out[i] = math.Exp((s - maxScore) / temperature)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// normCDF is the standard normal cumulative distribution.
func normCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

// probAbove returns P(X > line) for X ~ N(mean, sd).
func probAbove(line, mean, sd float64) float64 {
	if sd <= 0 {
		if mean > line {
			return 1
		}
		return 0
	}
	return 1 - normCDF((line-mean)/sd)
}

// foldedBand returns P(lo-0.5 <= |X| < hi+0.5) for X ~ N(mean, sd). hi < 0
// means unbounded.
func foldedBand(lo, hi int, mean, sd float64) float64 {
	upper := math.Inf(1)
	if hi >= 0 {
		upper = float64(hi) + 0.5
	}
	lower := float64(lo) - 0.5
	p := func(a, b float64) float64 {
		return normCDF((b-mean)/sd) - normCDF((a-mean)/sd)
	}
	return p(lower, upper) + p(-upper, -lower)
}

// binomialCDF returns P(X <= k) for X ~ Bin(n, p).
func binomialCDF(k, n int, p float64) float64 {
	if k < 0 {
		return 0
	}
	if k >= n {
		return 1
	}
	sum := 0.0
	for i := 0; i <= k; i++ {
		sum += binomialPMF(i, n, p)
	}
	return math.Min(sum, 1)
}

func binomialPMF(k, n int, p float64) float64 {
	lg := func(x int) float64 {
		v, _ := math.Lgamma(float64(x) + 1)
		return v
	}
	logC := lg(n) - lg(k) - lg(n-k)
	switch {
	case p <= 0:
		if k == 0 {
			return 1
		}
		return 0
	case p >= 1:
		if k == n {
			return 1
		}
		return 0
	}
	return math.Exp(logC + float64(k)*math.Log(p) + float64(n-k)*math.Log(1-p))
}

// poissonAbove returns P(X > line) for X ~ Poisson(lambda) and a half line.
func poissonAbove(line, lambda float64) float64 {
	k := int(math.Floor(line))
	cdf, term := 0.0, math.Exp(-lambda)
	for i := 0; i <= k; i++ {
		if i > 0 {
			term *= lambda / float64(i)
		}
		cdf += term
	}
	return math.Max(0, 1-cdf)
}

// normalize scales ps to sum to one. Non-positive entries are floored first.
func normalize(ps []float64) []float64 {
	out := make([]float64, len(ps))
	sum := 0.0
	for i, p := range ps {
		out[i] = math.Max(p, 1e-4)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
