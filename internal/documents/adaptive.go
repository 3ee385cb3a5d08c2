package documents

// Params are the effective chunking budgets for one corpus.
type Params struct {
	MinTokens     int
	MaxTokens     int
	OverlapTokens int
}

// LegacyParams returns the deprecated fixed budgets, reachable only via
// explicit configuration (adaptive disabled).
func LegacyParams() Params {
	return Params{MinTokens: 150, MaxTokens: 450, OverlapTokens: 40}
}

// FixedParams derives budgets from a configured window size and overlap.
func FixedParams(windowSizeTokens, overlapTokens int) Params {
	if windowSizeTokens <= 0 {
		windowSizeTokens = 500
	}
	if overlapTokens < 0 {
		overlapTokens = 0
	}
	return Params{
		MinTokens:     max(100, windowSizeTokens*3/10),
		MaxTokens:     windowSizeTokens,
		OverlapTokens: overlapTokens,
	}
}

// AdaptiveParams picks budgets from the total corpus size and the number of
// entities already discovered. Larger corpora get smaller windows; crowded
// entity spaces shrink the window further so each chunk stays on topic.
func AdaptiveParams(totalDocTokens, entityCount int) Params {
	target := 700
	switch {
	case totalDocTokens > 200_000:
		target = 350
	case totalDocTokens >= 50_000:
		target = 500
	}
	if entityCount > 10 {
		steps := (entityCount - 10) / 10
		shrink := 5 * steps
		if shrink > 50 {
			shrink = 50
		}
		target = target * (100 - shrink) / 100
	}
	if target < 200 {
		target = 200
	}
	if target > 800 {
		target = 800
	}
	overlap := target * 12 / 100
	if overlap > 100 {
		overlap = 100
	}
	return Params{
		MinTokens:     max(100, target*3/10),
		MaxTokens:     target,
		OverlapTokens: overlap,
	}
}
