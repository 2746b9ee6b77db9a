package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"time"

	"access-approval-api/config"
	"access-approval-api/models"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var signatureHashPattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// ComputeSignatureHash is sha256 over userID|documentID|signedAtUnixNano|nonce.
// Rows written before nonces were stored hash without the nonce part.
func ComputeSignatureHash(userID int, documentID int64, signedAtUnixNano int64, nonce string) string {
	payload := fmt.Sprintf("%d|%d|%d", userID, documentID, signedAtUnixNano)
	if nonce != "" {
		payload += "|" + nonce
	}
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// SignInput identifies who signs what.
type SignInput struct {
	DocumentID int64
	UserID     int
	Meta       AuditMeta
}

// SignatureRow is a ledger entry with the signer's display identity.
type SignatureRow struct {
	SignatureID    int64          `json:"signature_id"`
	DocumentID     int64          `json:"document_id"`
	Target         DocumentTarget `json:"target"`
	UserID         int            `json:"user_id"`
	SignerName     string         `json:"signer_name"`
	SignerPFNumber string         `json:"signer_pf_number"`
	SignatureHash  string         `json:"signature_hash"`
	SignedAt       time.Time      `json:"signed_at"`
}

// VerifyResult separates format/referential validity from re-derivation.
// Valid requires a 64 character hex token, an existing signer and a positive
// document id. When the row stores its nonce and signing time the token must
// also re-derive, otherwise Valid is false; Verified reports that re-derivation.
type VerifyResult struct {
	Valid         bool     `json:"valid"`
	Verified      bool     `json:"verified"`
	FormatOK      bool     `json:"format_ok"`
	SignerExists  bool     `json:"signer_exists"`
	DocumentIDOK  bool     `json:"document_id_ok"`
	Reasons       []string `json:"reasons,omitempty"`
	SignatureID   int64    `json:"signature_id"`
	DocumentID    int64    `json:"document_id"`
	UserID        int      `json:"user_id"`
	SignatureHash string   `json:"signature_hash"`
}

// SignatureLedger issues, lists and verifies document signatures.
type SignatureLedger struct {
	db       *gorm.DB
	now      func() time.Time
	newNonce func() string
}

func NewSignatureLedger(db *gorm.DB) *SignatureLedger {
	if db == nil {
		db = config.DB
	}
	return &SignatureLedger{db: db, now: time.Now, newNonce: uuid.NewString}
}

// Sign records that in.UserID signed in.DocumentID. A second call for the same
// pair, sequential or concurrent, returns the stored row with alreadySigned=true.
func (l *SignatureLedger) Sign(ctx context.Context, in SignInput) (sig *models.Signature, alreadySigned bool, err error) {
	if in.DocumentID <= 0 {
		return nil, false, ValidationError("document_id must be a positive integer")
	}
	if in.UserID <= 0 {
		return nil, false, ValidationError("user id is required")
	}

	var result models.Signature
	txErr := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var signer models.User
		if err := tx.Select("user_id").
			Where("user_id = ? AND delete_at IS NULL", in.UserID).
			First(&signer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ValidationError("signer %d does not exist", in.UserID)
			}
			return err
		}

		existing, err := findSignature(tx, in.DocumentID, in.UserID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = *existing
			alreadySigned = true
			return nil
		}

		signedAt := l.now()
		nano := signedAt.UnixNano()
		nonce := l.newNonce()
		result = models.Signature{
			DocumentID:       in.DocumentID,
			UserID:           in.UserID,
			SignatureHash:    ComputeSignatureHash(in.UserID, in.DocumentID, nano, nonce),
			Nonce:            &nonce,
			SignedAtUnixNano: &nano,
			SignedAt:         signedAt,
		}
		if err := tx.Create(&result).Error; err != nil {
			return err
		}

		return writeAudit(tx, auditEntry{
			userID:      in.UserID,
			action:      "sign",
			entityType:  "document",
			entityID:    in.DocumentID,
			newValues:   map[string]interface{}{"signature_id": result.SignatureID, "signature_hash": result.SignatureHash},
			description: fmt.Sprintf("Document %d signed by user %d", in.DocumentID, in.UserID),
			at:          signedAt,
		}, in.Meta)
	})

	if txErr != nil {
		if isDuplicateKey(txErr) {
			// Lost the race against a concurrent insert of the same pair.
			existing, err := findSignature(l.db.WithContext(ctx), in.DocumentID, in.UserID)
			if err != nil {
				return nil, false, InternalError(err, "Failed to load existing signature")
			}
			if existing == nil {
				return nil, false, InternalError(txErr, "Signature conflict could not be resolved")
			}
			signaturesTotal.WithLabelValues("existing").Inc()
			return existing, true, nil
		}
		var appErr *AppError
		if errors.As(txErr, &appErr) {
			return nil, false, txErr
		}
		return nil, false, InternalError(txErr, "Failed to sign document")
	}

	if alreadySigned {
		signaturesTotal.WithLabelValues("existing").Inc()
	} else {
		signaturesTotal.WithLabelValues("created").Inc()
		config.Log(ctx).Info("document signed",
			zap.Int64("document_id", result.DocumentID),
			zap.Int("user_id", result.UserID),
			zap.Int64("signature_id", result.SignatureID),
		)
	}
	return &result, alreadySigned, nil
}

func findSignature(db *gorm.DB, documentID int64, userID int) (*models.Signature, error) {
	var sig models.Signature
	err := db.Where("document_id = ? AND user_id = ?", documentID, userID).First(&sig).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// ListForDocument returns the document's signatures oldest first, each with the
// signer's name and PF number.
func (l *SignatureLedger) ListForDocument(ctx context.Context, documentID int64) ([]SignatureRow, error) {
	if documentID <= 0 {
		return nil, ValidationError("document_id must be a positive integer")
	}

	var sigs []models.Signature
	if err := l.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("signed_at ASC, signature_id ASC").
		Find(&sigs).Error; err != nil {
		return nil, InternalError(err, "Failed to list signatures")
	}

	rows := make([]SignatureRow, 0, len(sigs))
	if len(sigs) == 0 {
		return rows, nil
	}

	userIDs := make([]int, 0, len(sigs))
	for _, s := range sigs {
		userIDs = append(userIDs, s.UserID)
	}
	var signers []models.User
	if err := l.db.WithContext(ctx).
		Select("user_id", "name", "pf_number").
		Where("user_id IN ?", userIDs).
		Find(&signers).Error; err != nil {
		return nil, InternalError(err, "Failed to load signers")
	}
	byID := make(map[int]models.User, len(signers))
	for _, u := range signers {
		byID[u.UserID] = u
	}

	for _, s := range sigs {
		signer := byID[s.UserID]
		rows = append(rows, SignatureRow{
			SignatureID:    s.SignatureID,
			DocumentID:     s.DocumentID,
			Target:         DescribeTarget(s.DocumentID),
			UserID:         s.UserID,
			SignerName:     signer.Name,
			SignerPFNumber: signer.PFNumber,
			SignatureHash:  s.SignatureHash,
			SignedAt:       s.SignedAt,
		})
	}
	return rows, nil
}

// VerifyByID loads a signature and verifies it.
func (l *SignatureLedger) VerifyByID(ctx context.Context, signatureID int64) (*VerifyResult, error) {
	if signatureID <= 0 {
		return nil, ValidationError("invalid signature id")
	}
	var sig models.Signature
	if err := l.db.WithContext(ctx).First(&sig, signatureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFoundError("signature %d not found", signatureID)
		}
		return nil, InternalError(err, "Failed to load signature")
	}
	return l.Verify(ctx, &sig)
}

// Verify checks token format, signer existence and document id. When the row
// carries its nonce and signing time the token is also re-derived.
func (l *SignatureLedger) Verify(ctx context.Context, sig *models.Signature) (*VerifyResult, error) {
	if sig == nil {
		return nil, ValidationError("signature is required")
	}

	var count int64
	if err := l.db.WithContext(ctx).Model(&models.User{}).
		Where("user_id = ? AND delete_at IS NULL", sig.UserID).
		Count(&count).Error; err != nil {
		return nil, InternalError(err, "Failed to look up signer")
	}

	return evaluateSignature(sig, count > 0), nil
}

func evaluateSignature(sig *models.Signature, signerExists bool) *VerifyResult {
	res := &VerifyResult{
		SignatureID:   sig.SignatureID,
		DocumentID:    sig.DocumentID,
		UserID:        sig.UserID,
		SignatureHash: sig.SignatureHash,
		FormatOK:      signatureHashPattern.MatchString(sig.SignatureHash),
		SignerExists:  signerExists,
		DocumentIDOK:  sig.DocumentID > 0,
	}
	if !res.FormatOK {
		res.Reasons = append(res.Reasons, "signature hash is not a 64 character hex digest")
	}
	if !res.SignerExists {
		res.Reasons = append(res.Reasons, "signer no longer exists")
	}
	if !res.DocumentIDOK {
		res.Reasons = append(res.Reasons, "document id is not a positive integer")
	}
	res.Valid = res.FormatOK && res.SignerExists && res.DocumentIDOK

	if res.Valid && sig.Nonce != nil && sig.SignedAtUnixNano != nil {
		expected := ComputeSignatureHash(sig.UserID, sig.DocumentID, *sig.SignedAtUnixNano, *sig.Nonce)
		res.Verified = subtle.ConstantTimeCompare([]byte(expected), []byte(sig.SignatureHash)) == 1
		if !res.Verified {
			res.Valid = false
			res.Reasons = append(res.Reasons, "signature hash does not match its recorded inputs")
		}
	} else if res.Valid {
		res.Reasons = append(res.Reasons, "signature predates stored nonces; only format was checked")
	}
	return res
}
