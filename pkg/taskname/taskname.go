package taskname

const (
	// LicenseExpiryRun moves lapsed Active/Trial licenses to Expired.
	LicenseExpiryRun = "license:expiry:run"

	// LicenseSessionCloseStale ends tool sessions left open past the stale window.
	LicenseSessionCloseStale = "license:session:close-stale"
)
