package errors

// Error code constants returned to clients.
// Format: CATEGORY_SPECIFIC_DETAIL; the frontend maps these to messages.

const (
	// ==================== Auth (AUTH_) ====================
	AuthUnauthorized = "AUTH_UNAUTHORIZED"
	AuthTokenExpired = "AUTH_TOKEN_EXPIRED"
	AuthTokenInvalid = "AUTH_TOKEN_INVALID"

	// ==================== Authorization (AUTHZ_) ====================
	AuthzForbidden = "AUTHZ_FORBIDDEN"
	AuthzAdminOnly = "AUTHZ_ADMIN_ONLY"

	// ==================== Validation (VALIDATION_) ====================
	ValidationInvalidInput = "VALIDATION_INVALID_INPUT"
	ValidationInvalidID    = "VALIDATION_INVALID_ID"

	// ==================== Tags (TAG_) ====================
	TagNotFound      = "TAG_NOT_FOUND"
	TagAlreadyExists = "TAG_ALREADY_EXISTS"
	TagInvalidRule   = "TAG_INVALID_RULE"

	// ==================== QR / NFC (QR_) ====================
	QRNotFound       = "QR_NOT_FOUND"
	QRInvalidType    = "QR_INVALID_TYPE"
	QRIssuanceFailed = "QR_ISSUANCE_FAILED"

	// ==================== Customers (CUSTOMER_) ====================
	CustomerNotFound       = "CUSTOMER_NOT_FOUND"
	CustomerAlreadyExists  = "CUSTOMER_ALREADY_EXISTS"
	CustomerConsentRevoked = "CUSTOMER_CONSENT_REVOKED"

	// ==================== Segments (SEGMENT_) ====================
	SegmentNotFound      = "SEGMENT_NOT_FOUND"
	SegmentAlreadyExists = "SEGMENT_ALREADY_EXISTS"

	// ==================== Catalog (PRODUCT_) ====================
	ProductNotFound = "PRODUCT_NOT_FOUND"
	VendorNotFound  = "VENDOR_NOT_FOUND"

	// ==================== Snapshots (SNAPSHOT_) ====================
	SnapshotInvalid      = "SNAPSHOT_INVALID"
	SnapshotImportFailed = "SNAPSHOT_IMPORT_FAILED"

	// ==================== Internal (INTERNAL_) ====================
	InternalServerError   = "INTERNAL_SERVER_ERROR"
	InternalDatabaseError = "INTERNAL_DATABASE_ERROR"
	InternalExternalAPI   = "INTERNAL_EXTERNAL_API"
)
