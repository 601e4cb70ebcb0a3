package auction

import (
	"fmt"

	"github.com/mattiabrun/fantalega/go/internal/models"
)

// The three market flavors share one state machine; a variant only decides
// how a player enters the block, the base price, and whether turns may be
// passed. The resolution/acknowledgment tail is identical for all of them.
type variantRules struct {
	acquisition models.AcquisitionType

	// nominateOwned: the target must already be rostered by another member
	// (rubata). Otherwise the target must be unowned.
	nominateOwned bool

	// openingBid: the nominator opens with a binding counter-offer that
	// seeds the bid list when bidding starts.
	openingBid bool

	// allowPass: the turn member may pass instead of nominating; the phase
	// finishes once every active member has passed in the same cycle.
	allowPass bool

	// roleSequenced: nominations are restricted to the session's current
	// role, and the phase walks the configured role sequence.
	roleSequenced bool
}

func rulesForPhase(phase models.SessionPhase) (variantRules, error) {
	switch phase {
	case models.SessionPhaseFirstMarket:
		return variantRules{
			acquisition:   models.AcquisitionFirstMarket,
			roleSequenced: true,
		}, nil
	case models.SessionPhaseRubata:
		return variantRules{
			acquisition:   models.AcquisitionRubata,
			nominateOwned: true,
			openingBid:    true,
			allowPass:     true,
		}, nil
	case models.SessionPhaseSvincolati:
		return variantRules{
			acquisition: models.AcquisitionSvincolati,
			allowPass:   true,
		}, nil
	}
	return variantRules{}, fmt.Errorf("phase %s does not run auctions", phase)
}

// basePrice derives the opening price for a nomination. The quotation is the
// floor in every variant; a rubata opening offer must at least match it.
func (r variantRules) basePrice(player *models.Player, openingBid int) int {
	base := player.Quotation
	if base < 1 {
		base = 1
	}
	if r.openingBid && openingBid > base {
		base = openingBid
	}
	return base
}
