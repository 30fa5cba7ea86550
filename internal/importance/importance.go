// Package importance computes the host-level priority bonus added to a
// job's URL priority. The bonus rewards hosts with good PageRank and,
// once enough jobs have completed, hosts whose crawls succeed and yield
// relevant documents; it penalizes hosts that consistently fail.
package importance

import (
	"tuesearch/internal/config"
	"tuesearch/internal/model"
)

// ramp is the piecewise quadratic around the configured ratio threshold:
// positive and increasing above it, negative and steepening below it.
func ramp(x, threshold, bonus, penalty float64) float64 {
	if threshold <= 0 || threshold >= 1 {
		return 0
	}
	if x >= threshold {
		d := (x - threshold) / (1 - threshold)
		return bonus * d * d
	}
	d := (x - threshold) / threshold
	return -penalty * d * d
}

// Score returns the importance bonus for a host. It is monotone
// non-decreasing in page rank and strictly increasing past the threshold
// in both the success and relevance ratios. Hosts below the minimum
// sample size take a flat penalty instead of ratio terms.
func Score(s *model.Server, cfg config.ImportanceConfig) float64 {
	bonus := cfg.PageRankScale * s.PageRank
	if bonus > cfg.PageRankCap {
		bonus = cfg.PageRankCap
	}

	if s.TotalDoneJobs <= cfg.MinSample {
		return bonus - cfg.BelowSamplePen
	}

	total := float64(s.TotalDoneJobs)
	successRatio := float64(s.SuccessJobs) / total
	relevantRatio := float64(s.RelevantDocuments) / total

	bonus += ramp(successRatio, cfg.RatioThreshold, cfg.SuccessBonus, cfg.SuccessPenalty)
	bonus += ramp(relevantRatio, cfg.RatioThreshold, cfg.RelevanceBonus, cfg.RelevancePenalty)
	return bonus
}
