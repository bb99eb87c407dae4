// Package store persists users, their face encodings, and attendance
// records in SQLite. Encoding vectors are stored as binary blobs and
// encrypted at rest when enabled.
package store

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/attendly/faceattend/pkg/encoding"
	"github.com/attendly/faceattend/pkg/logging"
)

// ErrUserNotFound is returned when the user is not registered.
var ErrUserNotFound = errors.New("user not found")

// ErrUserExists is returned when registering a duplicate employee ID.
var ErrUserExists = errors.New("user already registered")

// ErrAlreadyCheckedIn is returned for a second check-in on the same day.
var ErrAlreadyCheckedIn = errors.New("already checked in today")

// ErrEncryption is returned when an encoding blob cannot be sealed or opened.
var ErrEncryption = errors.New("encryption error")

// User is one registered person.
type User struct {
	ID         int64
	Name       string
	EmployeeID string
	Email      string
	Department string
	CreatedAt  time.Time
}

// IdentityRecord is what the matcher roster loads: one user with every
// stored encoding. The aggregate is recomputed by the caller, never stored.
type IdentityRecord struct {
	ID         string
	Name       string
	ExternalID string
	Encodings  []encoding.Encoding
}

// AttendanceRecord is one check-in or check-out event.
type AttendanceRecord struct {
	ID         int64
	UserID     int64
	UserName   string
	MarkedAt   time.Time
	Confidence float64
	Action     string
}

// Store is a SQLite-backed persistence layer.
type Store struct {
	db        *sql.DB
	encrypted bool
	key       [keySize]byte
}

// Open opens (and if needed initializes) the attendance database.
func Open(path string, encrypted bool) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, encrypted: encrypted}
	if encrypted {
		key, err := deriveKey()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		s.key = key
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Component("store").Debugf("database ready at %s (encrypted=%t)", path, encrypted)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		employee_id TEXT UNIQUE NOT NULL,
		email TEXT,
		department TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS face_encodings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		vector BLOB NOT NULL,
		quality REAL NOT NULL DEFAULT 1.0,
		captured_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		marked_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		confidence REAL,
		action TEXT NOT NULL DEFAULT 'check_in',
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	CREATE INDEX IF NOT EXISTS idx_attendance_user_day ON attendance(user_id, marked_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// CreateUser registers a new user and returns their ID. The employee ID
// must be unique.
func (s *Store) CreateUser(name, employeeID, email, department string) (int64, error) {
	exists, err := s.UserExists(employeeID)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrUserExists
	}

	res, err := s.db.Exec(
		`INSERT INTO users (name, employee_id, email, department) VALUES (?, ?, ?, ?)`,
		name, employeeID, email, department,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read new user id: %w", err)
	}

	logging.Infof("Registered user %q (employee %s)", name, employeeID)
	return id, nil
}

// UserExists reports whether an employee ID is already registered.
func (s *Store) UserExists(employeeID string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM users WHERE employee_id = ?`, employeeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return n > 0, nil
}

// UserByID loads one user.
func (s *Store) UserByID(id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(
		`SELECT id, name, employee_id, COALESCE(email, ''), COALESCE(department, ''), created_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Name, &u.EmployeeID, &u.Email, &u.Department, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// Users lists all registered users.
func (s *Store) Users() ([]User, error) {
	rows, err := s.db.Query(
		`SELECT id, name, employee_id, COALESCE(email, ''), COALESCE(department, ''), created_at
		 FROM users ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.EmployeeID, &u.Email, &u.Department, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// DeleteUser removes a user, their encodings, and keeps attendance history.
func (s *Store) DeleteUser(id int64) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	if _, err := s.db.Exec(`DELETE FROM face_encodings WHERE user_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete encodings: %w", err)
	}
	logging.Infof("Deleted user %d", id)
	return nil
}

// AddEncoding stores one face encoding for a user.
func (s *Store) AddEncoding(userID int64, enc encoding.Encoding) error {
	blob, err := s.sealVector(enc.Vector)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO face_encodings (user_id, vector, quality, captured_at) VALUES (?, ?, ?, ?)`,
		userID, blob, enc.Quality, enc.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store encoding: %w", err)
	}
	return nil
}

// EncodingCount returns how many encodings a user has.
func (s *Store) EncodingCount(userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM face_encodings WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count encodings: %w", err)
	}
	return n, nil
}

// ListIdentities loads every user with all of their encodings, for roster
// loading. Users without encodings are skipped.
func (s *Store) ListIdentities() ([]IdentityRecord, error) {
	rows, err := s.db.Query(
		`SELECT u.id, u.name, u.employee_id, e.vector, e.quality, e.captured_at
		 FROM users u JOIN face_encodings e ON e.user_id = u.id
		 ORDER BY u.id, e.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load identities: %w", err)
	}
	defer rows.Close()

	var records []IdentityRecord
	byID := make(map[int64]int)
	for rows.Next() {
		var (
			userID     int64
			name       string
			employeeID string
			blob       []byte
			quality    float64
			capturedAt time.Time
		)
		if err := rows.Scan(&userID, &name, &employeeID, &blob, &quality, &capturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}

		vector, err := s.openVector(blob)
		if err != nil {
			return nil, err
		}

		idx, ok := byID[userID]
		if !ok {
			idx = len(records)
			byID[userID] = idx
			records = append(records, IdentityRecord{
				ID:         strconv.FormatInt(userID, 10),
				Name:       name,
				ExternalID: employeeID,
			})
		}
		records[idx].Encodings = append(records[idx].Encodings, encoding.Encoding{
			Vector:     vector,
			Quality:    quality,
			CapturedAt: capturedAt,
		})
	}
	return records, rows.Err()
}

// MarkAttendance records a check-in or check-out. A second check-in on the
// same calendar day is rejected.
func (s *Store) MarkAttendance(userID int64, confidence float64, action string, at time.Time) error {
	if action == "check_in" {
		day := at.Format("2006-01-02")
		var n int
		err := s.db.QueryRow(
			`SELECT COUNT(1) FROM attendance
			 WHERE user_id = ? AND action = 'check_in' AND date(marked_at) = ?`,
			userID, day,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to check attendance: %w", err)
		}
		if n > 0 {
			return ErrAlreadyCheckedIn
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO attendance (user_id, marked_at, confidence, action) VALUES (?, ?, ?, ?)`,
		userID, at, confidence, action,
	)
	if err != nil {
		return fmt.Errorf("failed to mark attendance: %w", err)
	}
	logging.Debugf("Attendance %s for user %d (confidence %.2f)", action, userID, confidence)
	return nil
}

// AttendanceOn lists attendance records for one calendar day.
func (s *Store) AttendanceOn(day string) ([]AttendanceRecord, error) {
	rows, err := s.db.Query(
		`SELECT a.id, a.user_id, u.name, a.marked_at, COALESCE(a.confidence, 0), a.action
		 FROM attendance a JOIN users u ON u.id = a.user_id
		 WHERE date(a.marked_at) = ? ORDER BY a.marked_at`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load attendance: %w", err)
	}
	defer rows.Close()

	var records []AttendanceRecord
	for rows.Next() {
		var r AttendanceRecord
		if err := rows.Scan(&r.ID, &r.UserID, &r.UserName, &r.MarkedAt, &r.Confidence, &r.Action); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// vectorBytes serializes a vector as little-endian float32s.
func vectorBytes(v encoding.Vector) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// bytesVector deserializes a vector blob.
func bytesVector(buf []byte) (encoding.Vector, error) {
	var v encoding.Vector
	if len(buf) != 4*len(v) {
		return v, fmt.Errorf("encoding blob has %d bytes, want %d", len(buf), 4*len(v))
	}
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
