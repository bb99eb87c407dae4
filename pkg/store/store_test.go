package store

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/attendly/faceattend/pkg/encoding"
)

func newTestStore(t *testing.T, encrypted bool) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "attendance.db"), encrypted)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEncoding(fill float32) encoding.Encoding {
	var v encoding.Vector
	for i := range v {
		v[i] = fill
	}
	return encoding.Encoding{Vector: v, Quality: 0.9, CapturedAt: time.Now()}
}

func TestCreateUser(t *testing.T) {
	s := newTestStore(t, false)

	id, err := s.CreateUser("Alice", "EMP001", "alice@example.com", "Engineering")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero user ID")
	}

	user, err := s.UserByID(id)
	if err != nil {
		t.Fatalf("UserByID failed: %v", err)
	}
	if user.Name != "Alice" || user.EmployeeID != "EMP001" || user.Department != "Engineering" {
		t.Errorf("unexpected user: %+v", user)
	}
}

func TestCreateUserDuplicateEmployeeID(t *testing.T) {
	s := newTestStore(t, false)

	if _, err := s.CreateUser("Alice", "EMP001", "", ""); err != nil {
		t.Fatalf("first CreateUser failed: %v", err)
	}
	if _, err := s.CreateUser("Other Alice", "EMP001", "", ""); !errors.Is(err, ErrUserExists) {
		t.Errorf("expected ErrUserExists, got %v", err)
	}

	exists, err := s.UserExists("EMP001")
	if err != nil || !exists {
		t.Errorf("UserExists = %v, %v; want true, nil", exists, err)
	}
}

func TestUserByIDNotFound(t *testing.T) {
	s := newTestStore(t, false)
	if _, err := s.UserByID(999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestDeleteUser(t *testing.T) {
	s := newTestStore(t, false)

	id, _ := s.CreateUser("Alice", "EMP001", "", "")
	if err := s.AddEncoding(id, testEncoding(0.5)); err != nil {
		t.Fatalf("AddEncoding failed: %v", err)
	}

	if err := s.DeleteUser(id); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if _, err := s.UserByID(id); !errors.Is(err, ErrUserNotFound) {
		t.Error("user still present after delete")
	}
	if n, _ := s.EncodingCount(id); n != 0 {
		t.Errorf("encodings remain after delete: %d", n)
	}

	if err := s.DeleteUser(id); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound on double delete, got %v", err)
	}
}

func TestEncodingRoundtrip(t *testing.T) {
	for _, encrypted := range []bool{false, true} {
		name := "plaintext"
		if encrypted {
			name = "encrypted"
		}
		t.Run(name, func(t *testing.T) {
			s := newTestStore(t, encrypted)

			id, _ := s.CreateUser("Alice", "EMP001", "", "")
			stored := testEncoding(0.25)
			if err := s.AddEncoding(id, stored); err != nil {
				t.Fatalf("AddEncoding failed: %v", err)
			}
			if err := s.AddEncoding(id, testEncoding(0.75)); err != nil {
				t.Fatalf("second AddEncoding failed: %v", err)
			}

			records, err := s.ListIdentities()
			if err != nil {
				t.Fatalf("ListIdentities failed: %v", err)
			}
			if len(records) != 1 {
				t.Fatalf("expected 1 identity, got %d", len(records))
			}

			rec := records[0]
			if rec.Name != "Alice" || rec.ExternalID != "EMP001" {
				t.Errorf("unexpected identity: %+v", rec)
			}
			if len(rec.Encodings) != 2 {
				t.Fatalf("expected 2 encodings, got %d", len(rec.Encodings))
			}
			if rec.Encodings[0].Vector != stored.Vector {
				t.Error("vector not preserved through storage")
			}
			if rec.Encodings[0].Quality != stored.Quality {
				t.Errorf("quality = %f, want %f", rec.Encodings[0].Quality, stored.Quality)
			}
		})
	}
}

func TestEncryptedBlobsAreOpaque(t *testing.T) {
	s := newTestStore(t, true)

	id, _ := s.CreateUser("Alice", "EMP001", "", "")
	enc := testEncoding(0.5)
	if err := s.AddEncoding(id, enc); err != nil {
		t.Fatalf("AddEncoding failed: %v", err)
	}

	var blob []byte
	err := s.db.QueryRow(`SELECT vector FROM face_encodings WHERE user_id = ?`, id).Scan(&blob)
	if err != nil {
		t.Fatalf("failed to read raw blob: %v", err)
	}

	plain := vectorBytes(enc.Vector)
	if bytes.Contains(blob, plain[:16]) {
		t.Error("raw blob contains plaintext vector bytes")
	}
	if len(blob) <= len(plain) {
		t.Errorf("encrypted blob should carry nonce overhead: %d <= %d", len(blob), len(plain))
	}
}

func TestOpenVectorRejectsTampering(t *testing.T) {
	s := newTestStore(t, true)

	blob, err := s.sealVector(testEncoding(0.5).Vector)
	if err != nil {
		t.Fatalf("sealVector failed: %v", err)
	}

	blob[len(blob)-1] ^= 0xff
	if _, err := s.openVector(blob); !errors.Is(err, ErrEncryption) {
		t.Errorf("expected ErrEncryption for tampered blob, got %v", err)
	}

	if _, err := s.openVector(blob[:10]); !errors.Is(err, ErrEncryption) {
		t.Errorf("expected ErrEncryption for truncated blob, got %v", err)
	}
}

func TestDeriveKeyStable(t *testing.T) {
	k1, err := deriveKey()
	if err != nil {
		t.Fatalf("deriveKey failed: %v", err)
	}
	k2, _ := deriveKey()
	if k1 != k2 {
		t.Error("key derivation not stable on the same host")
	}
	if k1 == sha256.Sum256(nil) {
		t.Error("key derived from empty identity")
	}
}

func TestMarkAttendanceDuplicateCheckIn(t *testing.T) {
	s := newTestStore(t, false)
	id, _ := s.CreateUser("Alice", "EMP001", "", "")

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	if err := s.MarkAttendance(id, 0.95, "check_in", now); err != nil {
		t.Fatalf("first check-in failed: %v", err)
	}

	err := s.MarkAttendance(id, 0.97, "check_in", now.Add(2*time.Hour))
	if !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Errorf("expected ErrAlreadyCheckedIn, got %v", err)
	}

	// Check-out the same day is fine, as is a check-in the next day.
	if err := s.MarkAttendance(id, 0.93, "check_out", now.Add(8*time.Hour)); err != nil {
		t.Errorf("check-out failed: %v", err)
	}
	if err := s.MarkAttendance(id, 0.95, "check_in", now.AddDate(0, 0, 1)); err != nil {
		t.Errorf("next-day check-in failed: %v", err)
	}
}

func TestAttendanceOn(t *testing.T) {
	s := newTestStore(t, false)
	alice, _ := s.CreateUser("Alice", "EMP001", "", "")
	bob, _ := s.CreateUser("Bob", "EMP002", "", "")

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	s.MarkAttendance(alice, 0.95, "check_in", day.Add(9*time.Hour))
	s.MarkAttendance(bob, 0.88, "check_in", day.Add(10*time.Hour))
	s.MarkAttendance(alice, 0.91, "check_out", day.Add(17*time.Hour))
	s.MarkAttendance(bob, 0.90, "check_in", day.AddDate(0, 0, 1).Add(9*time.Hour))

	records, err := s.AttendanceOn("2026-03-10")
	if err != nil {
		t.Fatalf("AttendanceOn failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].UserName != "Alice" || records[0].Action != "check_in" {
		t.Errorf("unexpected first record: %+v", records[0])
	}
	if records[2].Action != "check_out" {
		t.Errorf("records not in time order: %+v", records)
	}

	empty, err := s.AttendanceOn("2026-03-12")
	if err != nil {
		t.Fatalf("AttendanceOn failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no records, got %d", len(empty))
	}
}

func TestVectorBytesRoundtrip(t *testing.T) {
	v := testEncoding(0.123).Vector
	v[0], v[127] = -1.5, 42.0

	got, err := bytesVector(vectorBytes(v))
	if err != nil {
		t.Fatalf("bytesVector failed: %v", err)
	}
	if got != v {
		t.Error("vector changed through serialization")
	}

	if _, err := bytesVector(make([]byte, 100)); err == nil {
		t.Error("expected error for short blob")
	}
}
