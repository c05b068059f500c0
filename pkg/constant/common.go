package constant

const (
	CREATED              = "%s created successfully"
	UPDATED              = "Updated successfully"
	DELETED              = "Deleted successfully"
	CANT_FIND            = "%s not found"
	ALREADY_EXISTS       = "%s already exists"
	INVALID_REQUEST      = "Invalid request payload"
	SOMETHING_WENT_WRONG = "something went wrong"
	UNAUTHORIZED_ACCESS  = "unauthorized access"

	INVALID_PAGE_NUMBER      = "invalid page number"
	PAGE_NUMBER_OUT_OF_RANGE = "page number out of range"
)
