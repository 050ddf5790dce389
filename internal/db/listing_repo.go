package db

import (
	"context"

	"reride/internal/types"
)

// ListingRepo provides the read-only listing projections that entitlement
// math needs. These are intentionally separated from any listing CRUD
// surface: the entitlement engine treats the listings table as the
// authoritative ground truth and only ever counts against it.
type ListingRepo struct {
	db DBTX
}

// NewListingRepo creates a ListingRepo backed by the given database
// connection.
func NewListingRepo(db DBTX) *ListingRepo {
	return &ListingRepo{db: db}
}

// SnapshotsBySeller returns the status and featured flag of every
// non-deleted listing owned by the seller. This is the direct-count input to
// entitlement computation; sold and unpublished listings are included because
// a featured slot stays consumed regardless of listing status.
func (r *ListingRepo) SnapshotsBySeller(ctx context.Context, sellerID string) ([]types.ListingSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, status, is_featured
		 FROM listings
		 WHERE seller_id = $1
		   AND deleted_at IS NULL
		 ORDER BY created_at ASC`,
		sellerID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query listings", err)
	}
	defer rows.Close()

	var snapshots []types.ListingSnapshot
	for rows.Next() {
		var s types.ListingSnapshot
		if err := rows.Scan(&s.ID, &s.Status, &s.IsFeatured); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan listing row", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to read listing rows", err)
	}

	return snapshots, nil
}
