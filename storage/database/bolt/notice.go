package boltdb

import (
	"context"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/trezcool/daftari/core/notice"
)

type noticeRepository struct {
	db *DB
}

var _ notice.Repository = (*noticeRepository)(nil) // interface compliance check

func NewNoticeRepository(db *DB) *noticeRepository {
	return &noticeRepository{db: db}
}

// noticeRecord persists the read-set, which the JSON form of a notice hides.
type noticeRecord struct {
	notice.Notice
	ReadBy []string `json:"read_by"`
}

func (r noticeRecord) unwrap() notice.Notice {
	n := r.Notice
	n.ReadBy = r.ReadBy
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	return n
}

func getNotice(tx *bbolt.Tx, id string) (notice.Notice, error) {
	r, err := get[noticeRecord](tx, bktNotices, id, notice.ErrNotFound)
	if err != nil {
		return notice.Notice{}, err
	}
	return r.unwrap(), nil
}

func putNotice(tx *bbolt.Tx, n notice.Notice) error {
	return put(tx, bktNotices, n.ID, noticeRecord{Notice: n, ReadBy: n.ReadBy})
}

func scanNotices(tx *bbolt.Tx, keep func(notice.Notice) bool) ([]notice.Notice, error) {
	records, err := scan[noticeRecord](tx, bktNotices, nil)
	if err != nil {
		return nil, err
	}
	notices := make([]notice.Notice, 0, len(records))
	for _, r := range records {
		if n := r.unwrap(); keep(n) {
			notices = append(notices, n)
		}
	}
	return notices, nil
}

func newestFirst(notices []notice.Notice) {
	sort.Slice(notices, func(i, j int) bool { return notices[i].CreatedAt.After(notices[j].CreatedAt) })
}

func (repo noticeRepository) CreateNotice(_ context.Context, n notice.Notice) (notice.Notice, error) {
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	err := repo.db.update(func(tx *bbolt.Tx) error {
		return putNotice(tx, n)
	})
	if err != nil {
		return notice.Notice{}, err
	}
	return n, nil
}

func (repo noticeRepository) GetNotice(_ context.Context, id string) (n notice.Notice, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		n, err = getNotice(tx, id)
		return err
	})
	return n, err
}

func (repo noticeRepository) QueryVisible(_ context.Context, courseIDs []string) (notices []notice.Notice, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		notices, err = scanNotices(tx, func(n notice.Notice) bool { return n.VisibleTo(courseIDs) })
		return err
	})
	if err != nil {
		return nil, err
	}
	newestFirst(notices)
	return notices, nil
}

func (repo noticeRepository) QueryByAuthor(_ context.Context, authorID string) (notices []notice.Notice, err error) {
	err = repo.db.view(func(tx *bbolt.Tx) error {
		notices, err = scanNotices(tx, func(n notice.Notice) bool { return n.AuthorID == authorID })
		return err
	})
	if err != nil {
		return nil, err
	}
	newestFirst(notices)
	return notices, nil
}

// addReader is the set insertion of readerID into the read-set of n.
func addReader(n *notice.Notice, readerID string) bool {
	if n.ReadByEnrollee(readerID) {
		return false
	}
	n.ReadBy = append(n.ReadBy, readerID)
	return true
}

func (repo noticeRepository) MarkRead(_ context.Context, id, readerID string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		n, err := getNotice(tx, id)
		if err != nil {
			return err
		}
		if !addReader(&n, readerID) {
			return nil
		}
		return putNotice(tx, n)
	})
}

func (repo noticeRepository) MarkReadMany(_ context.Context, ids []string, readerID string) (changed int, err error) {
	err = repo.db.update(func(tx *bbolt.Tx) error {
		for _, id := range ids {
			n, err := getNotice(tx, id)
			if err != nil {
				if err == notice.ErrNotFound {
					continue
				}
				return err
			}
			if !addReader(&n, readerID) {
				continue
			}
			if err = putNotice(tx, n); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	return changed, err
}

func (repo noticeRepository) DeleteNotice(_ context.Context, id string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		if !exists(tx, bktNotices, id) {
			return notice.ErrNotFound
		}
		return del(tx, bktNotices, id)
	})
}

func (repo noticeRepository) DeleteByCourse(_ context.Context, courseID string) (n int, err error) {
	err = repo.db.update(func(tx *bbolt.Tx) error {
		deleted, err := scanNotices(tx, func(n notice.Notice) bool {
			return n.Scope == notice.ScopeCourse && n.CourseID == courseID
		})
		if err != nil {
			return err
		}
		for _, d := range deleted {
			if err = del(tx, bktNotices, d.ID); err != nil {
				return err
			}
		}
		n = len(deleted)
		return nil
	})
	return n, err
}

func (repo noticeRepository) RemoveReader(_ context.Context, readerID string) error {
	return repo.db.update(func(tx *bbolt.Tx) error {
		read, err := scanNotices(tx, func(n notice.Notice) bool { return n.ReadByEnrollee(readerID) })
		if err != nil {
			return err
		}
		for _, n := range read {
			kept := n.ReadBy[:0]
			for _, id := range n.ReadBy {
				if id != readerID {
					kept = append(kept, id)
				}
			}
			n.ReadBy = kept
			if err = putNotice(tx, n); err != nil {
				return err
			}
		}
		return nil
	})
}
