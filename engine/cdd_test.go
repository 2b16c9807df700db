package engine

import (
	"testing"
	"time"

	"github.com/freshgrlc/freshgrlc-indexer/model"
)

func TestComputeCoinDaysDestroyed(t *testing.T) {
	spendTime := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	sourceTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // 10 days earlier

	tx := &model.Transaction{
		FirstSeen: &spendTime,
		Inputs: []model.TransactionInput{
			{
				Input: &model.TransactionOutput{
					Amount: 2.0,
					Transaction: &model.Transaction{
						FirstSeen: &sourceTime,
					},
				},
			},
		},
	}

	s := &Session{}
	coindays, err := s.computeCoinDaysDestroyed(tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := 2.0 * 10
	if coindays != want {
		t.Fatalf("expected %v coin-days destroyed, got %v", want, coindays)
	}
}

func TestComputeCoinDaysDestroyedIgnoresMissingInputs(t *testing.T) {
	spendTime := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)

	tx := &model.Transaction{
		FirstSeen: &spendTime,
		Inputs: []model.TransactionInput{
			{Input: nil},
			{
				Input: &model.TransactionOutput{
					Amount:      1.0,
					Transaction: nil,
				},
			},
		},
	}

	s := &Session{}
	coindays, err := s.computeCoinDaysDestroyed(tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coindays != 0 {
		t.Fatalf("expected 0 coin-days when no input has a resolvable source transaction, got %v", coindays)
	}
}

func TestComputeCoinDaysDestroyedClampsNegativeAge(t *testing.T) {
	spendTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sourceTime := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC) // source "after" spend

	tx := &model.Transaction{
		FirstSeen: &spendTime,
		Inputs: []model.TransactionInput{
			{
				Input: &model.TransactionOutput{
					Amount: 5.0,
					Transaction: &model.Transaction{
						FirstSeen: &sourceTime,
					},
				},
			},
		},
	}

	s := &Session{}
	coindays, err := s.computeCoinDaysDestroyed(tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if coindays != 0 {
		t.Fatalf("expected age to be clamped to zero rather than going negative, got %v", coindays)
	}
}
