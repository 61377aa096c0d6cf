package models

// WaitlistEntry records one enrollment. The ip uniqueness constraint keeps a
// single machine from enrolling multiple accounts; the id doubles as the
// 1-based queue position.
type WaitlistEntry struct {
	ID      int32  `json:"id"`
	Account string `json:"account"`
	IP      string `json:"-"`
	Date    int64  `json:"date"`
}
