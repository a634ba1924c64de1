package pipeline

import (
	"math"

	"agora.app/verdict/internal/model"
)

// Controversy levels, least to most contested.
const (
	ControversyNone      = "No Arguments"
	ControversyConsensus = "Clear Consensus"
	ControversyModerate  = "Moderately Contested"
	ControversyHigh      = "Highly Contested"
)

// SideAverages returns the mean validity score per side, ignoring unverified
// arguments. A side with no verified arguments yields nil.
func SideAverages(args []model.Argument) (pro, con *float64) {
	var proSum, conSum float64
	var proN, conN int

	for _, a := range args {
		if a.ValidityScore == nil {
			continue
		}
		switch a.Side {
		case model.SidePro:
			proSum += float64(*a.ValidityScore)
			proN++
		case model.SideCon:
			conSum += float64(*a.ValidityScore)
			conN++
		}
	}

	if proN > 0 {
		v := proSum / float64(proN)
		pro = &v
	}
	if conN > 0 {
		v := conSum / float64(conN)
		con = &v
	}
	return pro, con
}

// Controversy classifies how contested a topic is. The base tier comes from
// how evenly arguments split across sides; when both sides have verified
// scores, the spread between the side averages promotes or demotes one tier.
// Close averages mean both sides hold up under checking, a wide gap means one
// side clearly wins.
func Controversy(args []model.Argument) string {
	var proCount, conCount int
	for _, a := range args {
		switch a.Side {
		case model.SidePro:
			proCount++
		case model.SideCon:
			conCount++
		}
	}

	total := proCount + conCount
	if total == 0 {
		return ControversyNone
	}

	balance := float64(min(proCount, conCount)) / float64(total)

	tier := 0
	switch {
	case balance >= 0.40:
		tier = 2
	case balance >= 0.25:
		tier = 1
	}

	pro, con := SideAverages(args)
	if pro != nil && con != nil {
		spread := math.Abs(*pro - *con)
		switch {
		case spread < 1.0:
			tier++
		case spread >= 2.0:
			tier--
		}
	}

	switch {
	case tier <= 0:
		return ControversyConsensus
	case tier == 1:
		return ControversyModerate
	default:
		return ControversyHigh
	}
}
