// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package streaming implements single-pass, numerically stable online
// statistics: running mean, Welford variance, Shannon entropy and
// reservoir sampling.
package streaming

import "math"

// Average is a running mean accumulator.
type Average struct {
	avg float64
	n   uint64
}

// Process folds a new element into the running average.
func (a *Average) Process(elem float64) {
	a.n++
	a.avg = AvgStateless(elem, a.avg, a.n)
}

// Get returns the current running average.
func (a *Average) Get() float64 { return a.avg }

// Count returns the number of elements processed so far.
func (a *Average) Count() uint64 { return a.n }

// AvgStateless recomputes a running average given the previous average
// and the element count including the new value.
func AvgStateless(newElem, prevAvg float64, newElemsCnt uint64) float64 {
	return prevAvg + (newElem-prevAvg)/float64(newElemsCnt)
}

// Variance is a Welford-algorithm streaming variance accumulator.
type Variance struct {
	avg    float64
	n      uint64
	varAux float64
}

// Process folds a new element into the running variance, updating the
// mean first and then the Welford auxiliary value using both the old
// and the new mean.
func (v *Variance) Process(elem float64) {
	oldAvg := v.avg
	v.n++
	v.avg = AvgStateless(elem, v.avg, v.n)
	v.varAux = VarAuxStateless(elem, v.varAux, oldAvg, v.avg)
}

// Get returns the current variance estimate: 0 until at least two
// elements have been processed.
func (v *Variance) Get() float64 {
	return VarStateless(v.varAux, v.n)
}

// Mean returns the current running mean.
func (v *Variance) Mean() float64 {
	return v.avg
}

// Std returns the current standard deviation estimate.
func (v *Variance) Std() float64 {
	return math.Sqrt(v.Get())
}

// Count returns the number of elements processed so far.
func (v *Variance) Count() uint64 { return v.n }

// VarStateless computes s^2 = S_k / (k-1), or 0 when k <= 1.
func VarStateless(varAux float64, elemsCnt uint64) float64 {
	if elemsCnt > 1 {
		return varAux / float64(elemsCnt-1)
	}
	return 0
}

// VarAuxStateless recomputes the Welford auxiliary value S_k from the
// previous S_{k-1}, the pre-update mean m_{k-1} and the post-update
// mean m_k.
func VarAuxStateless(newElem, prevVarAux, prevAvg, newAvg float64) float64 {
	return prevVarAux + (newElem-prevAvg)*(newElem-newAvg)
}

// Shannon computes the (un-normalised) Shannon entropy, in bits, of the
// frequency distribution of elems. Returns 0 when fewer than two
// distinct values are present.
func Shannon(elems []int) float64 {
	n := len(elems)
	if n <= 1 {
		return 0
	}

	counts := make(map[int]int, n)
	for _, e := range elems {
		counts[e]++
	}
	if len(counts) <= 1 {
		return 0
	}

	entropy := 0.0
	for _, c := range counts {
		p := float64(c) / float64(n)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// ShannonNorm computes the Shannon entropy of elems normalised to
// [0, 1] by dividing by log2(n). Returns 0 when n == 1.
func ShannonNorm(elems []int) float64 {
	n := len(elems)
	if n == 1 {
		return 0
	}
	return Shannon(elems) / math.Log2(float64(n))
}

// ShannonDict computes Shannon entropy directly from a precomputed
// frequency table, avoiding a second counting pass.
func ShannonDict(frequencies map[int]int, elemsCnt int) float64 {
	if len(frequencies) == 1 {
		return 0
	}

	entropy := 0.0
	for _, freq := range frequencies {
		p := float64(freq) / float64(elemsCnt)
		entropy += p * math.Log2(p)
	}
	return -entropy
}
