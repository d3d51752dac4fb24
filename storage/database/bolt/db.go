// Package boltdb stores every repository in a single embedded bbolt file.
// Uniqueness keys live in index buckets written in the same transaction as the record they guard.
package boltdb

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"
)

var (
	bktPersons             = []byte("persons")
	bktPersonsByEmail      = []byte("persons_by_email")
	bktEnrollees           = []byte("enrollees")
	bktEnrolleesByPerson   = []byte("enrollees_by_person")
	bktEnrolleesByNumber   = []byte("enrollees_by_number")
	bktInstructors         = []byte("instructors")
	bktInstructorsByPerson = []byte("instructors_by_person")
	bktInstructorsByEmpID  = []byte("instructors_by_employee_id")
	bktCourses             = []byte("courses")
	bktCoursesByCode       = []byte("courses_by_code")
	bktEnrollments         = []byte("enrollments") // course|enrollee
	bktAttendance          = []byte("attendance")
	bktAttendanceByKey     = []byte("attendance_by_key")
	bktResults             = []byte("results")
	bktResultsByKey        = []byte("results_by_key")
	bktTasks               = []byte("tasks")
	bktSubmissions         = []byte("submissions")
	bktSubmissionsByKey    = []byte("submissions_by_key")
	bktNotices             = []byte("notices")
	bktAudit               = []byte("audit")

	buckets = [][]byte{
		bktPersons, bktPersonsByEmail, bktEnrollees, bktEnrolleesByPerson, bktEnrolleesByNumber,
		bktInstructors, bktInstructorsByPerson, bktInstructorsByEmpID, bktCourses, bktCoursesByCode,
		bktEnrollments, bktAttendance, bktAttendanceByKey, bktResults, bktResultsByKey,
		bktTasks, bktSubmissions, bktSubmissionsByKey, bktNotices, bktAudit,
	}
)

// DB is an open bbolt file with all buckets created.
type DB struct {
	bolt *bbolt.DB
}

// Open opens (or creates) the database file at path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrap(err, "creating database directory")
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening bolt database")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "creating bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{bolt: db}, nil
}

func (db *DB) Close() error {
	return db.bolt.Close()
}

func (db *DB) view(fn func(tx *bbolt.Tx) error) error {
	return db.bolt.View(fn)
}

func (db *DB) update(fn func(tx *bbolt.Tx) error) error {
	return db.bolt.Update(fn)
}

func get[T any](tx *bbolt.Tx, bucket []byte, id string, notFound error) (T, error) {
	var out T
	v := tx.Bucket(bucket).Get([]byte(id))
	if v == nil {
		return out, notFound
	}
	if err := json.Unmarshal(v, &out); err != nil {
		return out, errors.Wrapf(err, "decoding %s/%s", bucket, id)
	}
	return out, nil
}

func put(tx *bbolt.Tx, bucket []byte, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s/%s", bucket, id)
	}
	return tx.Bucket(bucket).Put([]byte(id), data)
}

func exists(tx *bbolt.Tx, bucket []byte, id string) bool {
	return tx.Bucket(bucket).Get([]byte(id)) != nil
}

func del(tx *bbolt.Tx, bucket []byte, id string) error {
	return tx.Bucket(bucket).Delete([]byte(id))
}

// scan decodes every value of bucket passing keep; a nil keep keeps everything.
func scan[T any](tx *bbolt.Tx, bucket []byte, keep func(T) bool) ([]T, error) {
	return scanPrefix(tx, bucket, "", keep)
}

func scanPrefix[T any](tx *bbolt.Tx, bucket []byte, prefix string, keep func(T) bool) ([]T, error) {
	out := make([]T, 0)
	c := tx.Bucket(bucket).Cursor()
	p := []byte(prefix)
	for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return nil, errors.Wrapf(err, "decoding %s/%s", bucket, k)
		}
		if keep == nil || keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// deleteWhere removes every value of bucket passing match and returns the removed items.
func deleteWhere[T any](tx *bbolt.Tx, bucket []byte, id func(T) string, match func(T) bool) ([]T, error) {
	items, err := scan(tx, bucket, match)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if err = del(tx, bucket, id(item)); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// claim points the unique key of index at id. It fails with conflict when the key
// already belongs to another id.
func claim(tx *bbolt.Tx, index []byte, key, id string, conflict error) error {
	b := tx.Bucket(index)
	if owner := b.Get([]byte(key)); owner != nil && string(owner) != id {
		return conflict
	}
	return b.Put([]byte(key), []byte(id))
}

// lookup returns the id the unique key of index points at, "" if none.
func lookup(tx *bbolt.Tx, index []byte, key string) string {
	return string(tx.Bucket(index).Get([]byte(key)))
}

func release(tx *bbolt.Tx, index []byte, key string) error {
	return tx.Bucket(index).Delete([]byte(key))
}
