package conversation

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/hh-outreach/internal/format"
)

// Reconcile merges the locally persisted and the remotely fetched records of
// one contact into a single thread. account is the authenticated mailbox
// address and decides which records are outbound.
//
// The result depends only on the arguments: calling Reconcile twice with the
// same input yields the same thread.
func Reconcile(contactID, account string, local, remote []EmailRecord) Thread {
	account = NormalizeAddress(account)

	all := make([]EmailRecord, 0, len(local)+len(remote))
	for _, rec := range local {
		rec.Source = SourceLocal
		all = append(all, rec)
	}
	for _, rec := range remote {
		rec.Source = SourceRemote
		all = append(all, rec)
	}

	d := newDeduper()
	dropped := 0
	for _, rec := range all {
		rec, ok := classify(contactID, account, rec)
		if !ok {
			dropped++
			continue
		}
		d.add(rec)
	}

	records := d.records()
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SentAt.Before(records[j].SentAt)
	})

	visible := make([]EmailRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(format.VisibleText(rec.Body, rec.IsHTML)) == "" {
			continue
		}
		visible = append(visible, rec)
	}

	return Thread{
		ContactID: contactID,
		Subject:   anchorSubject(records),
		Records:   records,
		Visible:   visible,
		Stats:     computeStats(records),
		Dropped:   dropped,
	}
}

// classify validates a record and fixes its direction against the account.
func classify(contactID, account string, rec EmailRecord) (EmailRecord, bool) {
	if rec.ContactID != contactID || rec.SentAt.IsZero() {
		return rec, false
	}

	rec.From = NormalizeAddress(rec.From)
	rec.To = NormalizeAddress(rec.To)
	rec.SentAt = rec.SentAt.UTC()

	if account == "" {
		return rec, rec.Direction.Valid()
	}

	if rec.From == "" {
		return rec, false
	}

	switch {
	case rec.From == account && rec.Direction == DirectionFollowUp:
	case rec.From == account:
		rec.Direction = DirectionOutbound
	default:
		rec.Direction = DirectionInbound
	}

	return rec, true
}

type deduper struct {
	kept        []EmailRecord
	byMessageID map[string]int
	byThread    map[string]int
	byContent   map[string]int
}

func newDeduper() *deduper {
	return &deduper{
		byMessageID: make(map[string]int),
		byThread:    make(map[string]int),
		byContent:   make(map[string]int),
	}
}

func (d *deduper) add(rec EmailRecord) {
	idx, ok := d.match(rec)
	if !ok {
		d.kept = append(d.kept, rec)
		d.index(len(d.kept)-1, rec)
		return
	}

	d.kept[idx] = merge(d.kept[idx], rec)
	d.index(idx, d.kept[idx])
}

// match finds an already kept copy of rec. Provider ids win; two records
// carrying different message ids are never the same email.
func (d *deduper) match(rec EmailRecord) (int, bool) {
	if rec.MessageID != "" {
		if idx, ok := d.byMessageID[rec.MessageID]; ok {
			return idx, true
		}
	}

	if rec.MessageID == "" && rec.ThreadID != "" {
		if idx, ok := d.byThread[threadKey(rec)]; ok && d.kept[idx].MessageID == "" {
			return idx, true
		}
	}

	if idx, ok := d.byContent[contentKey(rec)]; ok {
		if rec.MessageID == "" || d.kept[idx].MessageID == "" {
			return idx, true
		}
	}

	return 0, false
}

func (d *deduper) index(idx int, rec EmailRecord) {
	if rec.MessageID != "" {
		d.byMessageID[rec.MessageID] = idx
	}
	if rec.ThreadID != "" {
		if _, ok := d.byThread[threadKey(rec)]; !ok {
			d.byThread[threadKey(rec)] = idx
		}
	}
	key := contentKey(rec)
	if _, ok := d.byContent[key]; !ok {
		d.byContent[key] = idx
	}
}

func (d *deduper) records() []EmailRecord {
	out := make([]EmailRecord, len(d.kept))
	copy(out, d.kept)
	return out
}

// merge keeps the local copy of a duplicated email and borrows provider ids
// it lacks from the other copy.
func merge(kept, dup EmailRecord) EmailRecord {
	primary, secondary := kept, dup
	if kept.Source != SourceLocal && dup.Source == SourceLocal {
		primary, secondary = dup, kept
	}

	if primary.MessageID == "" {
		primary.MessageID = secondary.MessageID
	}
	if primary.ThreadID == "" {
		primary.ThreadID = secondary.ThreadID
	}
	if primary.ID == "" {
		primary.ID = secondary.ID
	}

	return primary
}

func threadKey(rec EmailRecord) string {
	return strings.Join([]string{
		rec.ThreadID,
		rec.From,
		strconv.FormatInt(minute(rec.SentAt), 10),
	}, "\x00")
}

// contentKey is the fallback identity of an email: who, what and when, to the
// minute.
func contentKey(rec EmailRecord) string {
	return strings.Join([]string{
		NormalizeAddress(rec.From),
		NormalizeAddress(rec.To),
		normalizeSubject(rec.Subject),
		bodyHash(rec.Body, rec.IsHTML),
		strconv.FormatInt(minute(rec.SentAt), 10),
	}, "\x00")
}

// minute rounds to the nearest minute.
func minute(t time.Time) int64 {
	return t.UTC().Round(time.Minute).Unix()
}

func normalizeSubject(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func bodyHash(body string, isHTML bool) string {
	text := strings.Join(strings.Fields(format.VisibleText(body, isHTML)), " ")
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func computeStats(records []EmailRecord) Stats {
	stats := Stats{Total: len(records)}
	for i, rec := range records {
		switch rec.Direction {
		case DirectionOutbound:
			stats.Outbound++
		case DirectionFollowUp:
			stats.Outbound++
			stats.FollowUps++
		case DirectionInbound:
			stats.Inbound++
		}
		if i == 0 {
			stats.FirstAt = rec.SentAt
		}
		stats.LastAt = rec.SentAt
	}
	return stats
}

func anchorSubject(records []EmailRecord) string {
	for _, rec := range records {
		if rec.Direction == DirectionOutbound {
			return subjectOrPlaceholder(rec.Subject)
		}
	}
	if len(records) > 0 {
		return subjectOrPlaceholder(records[0].Subject)
	}
	return NoSubject
}

func subjectOrPlaceholder(s string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return NoSubject
}
