package domain

// RetryStats aggregates retry-engine counters for a campaign.
type RetryStats struct {
	EntriesEnqueued   int64 `db:"entries_enqueued"`
	EntriesDispatched int64 `db:"entries_dispatched"`
	EntriesCompleted  int64 `db:"entries_completed"`
	EntriesCancelled  int64 `db:"entries_cancelled"`
	StopsIssued       int64 `db:"stops_issued"`
}
