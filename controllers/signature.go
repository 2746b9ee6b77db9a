package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"access-approval-api/services"

	"github.com/gin-gonic/gin"
)

// SignatureController exposes the document signature ledger.
type SignatureController struct {
	ledger *services.SignatureLedger
}

func NewSignatureController(ledger *services.SignatureLedger) *SignatureController {
	return &SignatureController{ledger: ledger}
}

type signDocumentPayload struct {
	// DocumentID is a positive integer or a symbolic key such as "access_request_form".
	DocumentID json.RawMessage `json:"document_id"`
}

// rawDocumentID accepts both 42 and "42" / "ict_policy_acknowledgement".
func rawDocumentID(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// SignDocument handles POST /documents/sign.
func (ctl *SignatureController) SignDocument(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req signDocumentPayload
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, services.ValidationError("Invalid request body"))
		return
	}
	raw, ok := rawDocumentID(req.DocumentID)
	if !ok {
		respondError(c, services.ValidationError("document_id is required"))
		return
	}

	target, err := services.ParseTarget(raw, actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	documentID, err := target.ResolveID()
	if err != nil {
		respondError(c, err)
		return
	}

	sig, alreadySigned, err := ctl.ledger.Sign(c.Request.Context(), services.SignInput{
		DocumentID: documentID,
		UserID:     actor.UserID,
		Meta:       auditMeta(c),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	message := "Document signed"
	if alreadySigned {
		status = http.StatusOK
		message = "Document already signed"
	}
	c.JSON(status, gin.H{
		"success":        true,
		"message":        message,
		"signature_id":   sig.SignatureID,
		"signature_hash": sig.SignatureHash,
		"signed_at":      sig.SignedAt,
		"document_id":    sig.DocumentID,
		"already_signed": alreadySigned,
		"target":         target,
	})
}

// ListDocumentSignatures handles GET /documents/:id/signatures. The id may be
// numeric or symbolic, resolved for the caller.
func (ctl *SignatureController) ListDocumentSignatures(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	documentID, err := services.ResolveTargetID(c.Param("id"), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	rows, err := ctl.ledger.ListForDocument(c.Request.Context(), documentID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"document_id": documentID,
		"signatures":  rows,
		"total":       len(rows),
	})
}

// VerifySignature handles GET /signatures/:id/verify.
func (ctl *SignatureController) VerifySignature(c *gin.Context) {
	id, err := strconv.ParseInt(strings.TrimSpace(c.Param("id")), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, services.ValidationError("invalid signature id"))
		return
	}

	result, err := ctl.ledger.VerifyByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{
		"success":      result.Valid,
		"verification": result,
	})
}
