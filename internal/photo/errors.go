package photo

import "github.com/orthoflow/practice-service/internal/apperr"

var (
	ErrPhotoNotFound     = apperr.NotFound("photo")
	ErrCategoryNotFound  = apperr.NotFound("photo category")
	ErrPatientNotFound   = apperr.NotFound("patient")
	ErrPairNotFound      = apperr.NotFound("photo pair")
	ErrDuplicateSlug     = apperr.Conflict("photo category slug already exists")
	ErrCategoryInUse     = apperr.Conflict("photo category still has photos")
	ErrAlreadyPaired     = apperr.Conflict("photo is already part of a pair")
	ErrPairSamePhoto     = apperr.Invalid("after_id", "must differ from before_id")
	ErrPairOtherPatient  = apperr.Invalid("", "both photos must belong to the patient")
	ErrUnknownCategory   = apperr.Invalid("category", "unknown photo category")
	ErrNoFieldsToUpdate  = apperr.Invalid("", "no fields to update")
	ErrEmptyUpload       = apperr.Invalid("file", "is required")
	ErrUnsupportedFormat = apperr.Invalid("file", "must be a JPEG, PNG, WebP or HEIC image")
)
