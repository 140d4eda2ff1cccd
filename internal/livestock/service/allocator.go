package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/NogaLive/SNIUGB/internal/livestock/identifier"
	"github.com/NogaLive/SNIUGB/internal/livestock/models"
	"github.com/NogaLive/SNIUGB/internal/storage"
	dErrors "github.com/NogaLive/SNIUGB/pkg/domain-errors"
	"github.com/NogaLive/SNIUGB/pkg/platform/sentinel"
)

// SequenceAllocator hands out the next sequence of a partition. It must run
// inside the transaction that inserts the animal: the partition lock it takes
// is held until that transaction ends.
type SequenceAllocator struct{}

// Next locks the partition, reads its current maximum and returns max+1.
func (SequenceAllocator) Next(ctx context.Context, animals storage.AnimalStore, p models.Partition) (int, error) {
	if err := animals.LockPartition(ctx, p); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to lock partition")
	}
	maxSeq, err := animals.MaxSequenceInPartition(ctx, p)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read partition sequence")
	}
	if maxSeq >= identifier.MaxSequence {
		return 0, dErrors.Wrap(
			fmt.Errorf("%w: species %d region %02d", models.ErrSequenceExhausted, p.SpeciesDigit, p.RegionCode),
			dErrors.CodeResourceExhausted, "no sequence numbers left for this species and region")
	}
	return maxSeq + 1, nil
}

// Allocation is a freshly minted CUI with the partition it belongs to.
type Allocation struct {
	CUI       string
	Species   models.Species
	Region    models.Region
	Partition models.Partition
	Sequence  int
}

// Allocator mints complete CUIs from reference names.
type Allocator struct {
	sequences SequenceAllocator
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate resolves the species digit and region code, takes the next
// sequence of the partition and appends the check digit. The returned CUI is
// guaranteed absent from the registry as seen by stores' transaction.
func (a *Allocator) Allocate(ctx context.Context, stores storage.Stores, speciesName, regionName string) (*Allocation, error) {
	species, err := stores.References.SpeciesByName(ctx, speciesName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(models.ErrUnknownSpecies, dErrors.CodeValidation, fmt.Sprintf("unknown species %q", speciesName))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve species")
	}
	region, err := stores.References.RegionByName(ctx, regionName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(models.ErrUnknownRegion, dErrors.CodeValidation, fmt.Sprintf("unknown region %q", regionName))
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve region")
	}

	p := models.Partition{SpeciesDigit: species.Digit, RegionCode: region.Code}
	seq, err := a.sequences.Next(ctx, stores.Animals, p)
	if err != nil {
		return nil, err
	}

	cui, err := identifier.Build(p.SpeciesDigit, p.RegionCode, seq)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build CUI")
	}
	if !identifier.Verify(cui) {
		return nil, dErrors.New(dErrors.CodeInternal, "minted CUI failed checksum verification")
	}
	exists, err := stores.Animals.Exists(ctx, cui)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check CUI uniqueness")
	}
	if exists {
		return nil, dErrors.New(dErrors.CodeInternal, "minted CUI already registered")
	}

	return &Allocation{CUI: cui, Species: *species, Region: *region, Partition: p, Sequence: seq}, nil
}
