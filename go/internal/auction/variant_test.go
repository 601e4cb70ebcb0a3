package auction

import (
	"testing"

	"github.com/mattiabrun/fantalega/go/internal/models"
)

func TestRulesForPhase(t *testing.T) {
	tests := []struct {
		phase   models.SessionPhase
		want    variantRules
		wantErr bool
	}{
		{
			phase: models.SessionPhaseFirstMarket,
			want:  variantRules{acquisition: models.AcquisitionFirstMarket, roleSequenced: true},
		},
		{
			phase: models.SessionPhaseRubata,
			want:  variantRules{acquisition: models.AcquisitionRubata, nominateOwned: true, openingBid: true, allowPass: true},
		},
		{
			phase: models.SessionPhaseSvincolati,
			want:  variantRules{acquisition: models.AcquisitionSvincolati, allowPass: true},
		},
		{phase: models.SessionPhaseSetup, wantErr: true},
		{phase: models.SessionPhaseContracts, wantErr: true},
		{phase: models.SessionPhasePrizes, wantErr: true},
		{phase: models.SessionPhaseCompleted, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			got, err := rulesForPhase(tt.phase)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for phase %s", tt.phase)
				}
				return
			}
			if err != nil {
				t.Fatalf("rulesForPhase: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBasePrice(t *testing.T) {
	firstMarket, _ := rulesForPhase(models.SessionPhaseFirstMarket)
	rubata, _ := rulesForPhase(models.SessionPhaseRubata)

	tests := []struct {
		name       string
		rules      variantRules
		quotation  int
		openingBid int
		want       int
	}{
		{name: "quotation is the floor", rules: firstMarket, quotation: 12, want: 12},
		{name: "zero quotation floors at one", rules: firstMarket, quotation: 0, want: 1},
		{name: "opening bid ignored outside rubata", rules: firstMarket, quotation: 5, openingBid: 40, want: 5},
		{name: "rubata opening offer raises the base", rules: rubata, quotation: 5, openingBid: 40, want: 40},
		{name: "rubata offer below quotation keeps the floor", rules: rubata, quotation: 20, openingBid: 3, want: 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := &models.Player{Quotation: tt.quotation}
			if got := tt.rules.basePrice(player, tt.openingBid); got != tt.want {
				t.Fatalf("basePrice = %d, want %d", got, tt.want)
			}
		})
	}
}
