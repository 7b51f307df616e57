package starspace

import (
	"fmt"
	"math"
	"time"

	"github.com/facebookresearch/StarSpace/IO"
	"github.com/facebookresearch/StarSpace/metrics"
	"github.com/pkg/errors"
)

// Train runs the epoch loop and returns the training loss of every epoch.
// The rate decays linearly from lr to termLr over the configured epochs.
// With a validation file, training stops once validation loss has not
// improved for validationPatience epochs in a row.
func (s *StarSpace) Train() ([]float64, error) {
	if s.trainData == nil || s.model == nil {
		return nil, errors.New("train called before init")
	}
	var hist IO.History
	if s.Args.TrainLog != "" {
		h, err := IO.OpenHistory(s.Args.TrainLog)
		if err != nil {
			return nil, err
		}
		defer h.Close()
		hist = h
	}

	rate := s.Args.LR
	decrPerEpoch := (rate - s.Args.TermLR) / float64(s.Args.Epoch)
	bestValid := math.Inf(1)
	noImprovementCount := 0
	var losses []float64

	start := time.Now()
	for e := 0; e < s.Args.Epoch; e++ {
		s.log.Info("Training epoch %d: %.6f %.6g", e, rate, decrPerEpoch)
		metrics.SetRate(rate)
		trainLoss := s.model.Train(s.trainData, s.Args.Thread, start, e, rate, math.Max(rate-decrPerEpoch, 0))
		losses = append(losses, trainLoss)
		metrics.SetTrainLoss(trainLoss)
		s.log.Info("---+++ %20s %4d Train error : %3.8f +++---", "Epoch", e, trainLoss)

		stop := false
		validLoss := math.NaN()
		if s.validData != nil {
			validLoss = s.model.Test(s.validData, s.Args.Thread)
			metrics.SetValidLoss(validLoss)
			s.log.Info("Validation error: %f", validLoss)
			if validLoss < bestValid {
				bestValid = validLoss
				noImprovementCount = 0
			} else {
				noImprovementCount++
				if noImprovementCount > s.Args.ValidationPatience {
					s.log.Info("Ran out of patience after %d non-improving epochs. Early stopping.", noImprovementCount)
					stop = true
				}
			}
		}

		if hist != nil {
			err := hist.Record(IO.EpochRecord{
				RunID:     s.RunID,
				Epoch:     e,
				Rate:      rate,
				TrainLoss: trainLoss,
				ValidLoss: validLoss,
				Elapsed:   time.Since(start),
			})
			if err != nil {
				return losses, err
			}
		}

		if s.Args.SaveEveryEpoch && e < s.Args.Epoch-1 {
			if err := s.saveSnapshot(e); err != nil {
				return losses, err
			}
		}

		rate = math.Max(rate-decrPerEpoch, 0)
		if stop {
			break
		}
		if time.Since(start) > time.Duration(s.Args.MaxTrainTime)*time.Second {
			s.log.Info("MaxTrainTime exceeded.")
			break
		}
	}
	return losses, nil
}

func (s *StarSpace) saveSnapshot(epoch int) error {
	path := fmt.Sprintf("%s_epoch%d", s.Args.Model, epoch)
	if err := s.SaveModel(path); err != nil {
		return err
	}
	if s.Args.SaveTempModel {
		return s.SaveModelTsv(path + ".tsv")
	}
	return nil
}
