package model

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facebookresearch/StarSpace/data"
	"github.com/facebookresearch/StarSpace/metrics"
	"github.com/facebookresearch/StarSpace/params"
	"github.com/facebookresearch/StarSpace/parser"
	"github.com/facebookresearch/StarSpace/utils"
)

// kDecrStep: decrementing the rate after every sample loses the update to
// float precision, so it is decremented once per kDecrStep samples.
const kDecrStep = 1000

// sharedRate is read and decremented by every worker without ordering.
// Concurrent decrements may be lost; the schedule only needs to go down.
type sharedRate struct{ bits atomic.Uint64 }

func (r *sharedRate) load() float64   { return math.Float64frombits(r.bits.Load()) }
func (r *sharedRate) store(v float64) { r.bits.Store(math.Float64bits(v)) }

// Train runs one epoch of Hogwild SGD over d and returns the mean loss.
// The rate decays linearly from rate to finishRate. One of numThreads is
// kept for the norm truncator, which runs until every worker is done.
func (m *EmbedModel) Train(d data.Handler, numThreads int, tStart time.Time, epoch int, rate, finishRate float64) float64 {
	if rate < finishRate || rate < 0 {
		panic("EmbedModel.Train: rate must be non-negative and not below finishRate")
	}
	numSamples := d.Size()
	if numSamples == 0 {
		return 0
	}
	master := utils.NewRand(m.args.Seed, uint64(epoch)<<32)
	indices := master.Perm(numSamples)

	decrPerKSample := 0.0
	if steps := numSamples / kDecrStep; steps > 0 {
		decrPerKSample = (rate - finishRate) / float64(steps)
	}
	negSearchLimit := min(numSamples, m.args.NegSearchLimit)

	numThreads = min(max(numThreads, 2)-1, numSamples)
	losses := make([]float64, numThreads)
	counts := make([]int64, numThreads)
	var cur sharedRate
	cur.store(rate)
	deadline := tStart.Add(time.Duration(m.args.MaxTrainTime) * time.Second)

	trainThread := func(idx int, chunk []int) {
		rng := utils.NewRand(m.args.Seed, uint64(epoch)<<32|uint64(idx+1))
		amMaster := idx == 0
		t0 := time.Now()
		var batch []parser.ParseResults
		var words []parser.ParseResults
		flush := func() {
			for len(batch) > 0 {
				n := min(len(batch), m.args.BatchSize)
				losses[idx] += m.trainBatch(d, batch[:n], negSearchLimit, cur.load(), false, rng)
				batch = batch[n:]
			}
			for len(words) > 0 {
				n := min(len(words), m.args.BatchSize)
				m.trainBatch(d, words[:n], negSearchLimit, m.args.WordWeight*cur.load(), true, rng)
				words = words[n:]
			}
		}
		for ip, i := range chunk {
			if time.Now().After(deadline) {
				break
			}
			if m.args.TrainMode == 5 {
				for _, w := range d.WordExamples(i, rng) {
					if len(w.LHSTokens) > 0 {
						batch = append(batch, w)
						counts[idx]++
					}
				}
			} else {
				ex := d.ExampleByID(i, rng)
				if len(ex.LHSTokens) > 0 && len(ex.RHSTokens) > 0 {
					batch = append(batch, ex)
					counts[idx]++
				}
				if m.args.TrainWord {
					for _, w := range d.WordExamples(i, rng) {
						if len(w.LHSTokens) > 0 {
							words = append(words, w)
						}
					}
				}
			}
			if len(batch) >= m.args.BatchSize || ip == len(chunk)-1 {
				flush()
			}

			if i%kDecrStep == kDecrStep-1 {
				cur.store(cur.load() - decrPerKSample)
			}
			if amMaster && (ip%100 == 99 || ip == len(chunk)-1) {
				m.progress(t0, ip+1, len(chunk), cur.load(), losses[idx], counts[idx])
			}
		}
		flush()
		if rate > 0 {
			metrics.AddExamples(int(counts[idx]))
		}
	}

	numPerThread := (numSamples + numThreads - 1) / numThreads
	var wg sync.WaitGroup
	for i := 0; i < numThreads; i++ {
		start := min(i*numPerThread, numSamples)
		end := min(start+numPerThread, numSamples)
		wg.Add(1)
		go func(idx int, chunk []int) {
			defer wg.Done()
			trainThread(idx, chunk)
		}(i, indices[start:end])
	}

	// The truncator clamps rows to Norm while the workers run.
	var done atomic.Bool
	var truncWG sync.WaitGroup
	if rate > 0 {
		truncWG.Add(1)
		go func() {
			defer truncWG.Done()
			m.truncateLoop(&done)
		}()
	}
	wg.Wait()
	done.Store(true)
	truncWG.Wait()

	var totLoss float64
	var totCount int64
	for i := range losses {
		totLoss += losses[i]
		totCount += counts[i]
	}
	if totCount == 0 {
		return 0
	}
	return totLoss / float64(totCount)
}

func (m *EmbedModel) trainBatch(d data.Handler, batch []parser.ParseResults, negSearchLimit int, rate float64, words bool, rng *rand.Rand) float64 {
	if m.args.LossKind() == params.Softmax {
		return m.TrainNLLBatch(d, batch, negSearchLimit, rate, words, rng)
	}
	return m.TrainOneBatch(d, batch, negSearchLimit, rate, words, rng)
}

func (m *EmbedModel) truncateLoop(done *atomic.Bool) {
	rows := m.LHS.Rows()
	for i := 0; !done.Load(); i++ {
		id := int32(i % rows)
		truncate(m.LHS.Row(id), m.args.Norm)
		if !m.Shared() {
			truncate(m.RHS.Row(id), m.args.Norm)
		}
	}
}

func (m *EmbedModel) progress(t0 time.Time, done, total int, rate, loss float64, count int64) {
	p := float64(done) / float64(total)
	spent := time.Since(t0).Seconds()
	eta := int(spent / p * (1 - p))
	mean := 0.0
	if count > 0 {
		mean = loss / float64(count)
	}
	m.log.Debug("Progress: %.1f%%  lr: %.6f  loss: %.6f  eta: %dh%dm", 100*p, rate, mean, eta/3600, (eta%3600)/60)
}

// Test measures the mean loss over d without touching the tables.
func (m *EmbedModel) Test(d data.Handler, numThreads int) float64 {
	return m.Train(d, numThreads, time.Now(), 0, 0, 0)
}
