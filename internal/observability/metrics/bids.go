// Package metrics provides Prometheus instrumentation for sealreg.
package metrics

// BidPlace records a bid placement operation.
func BidPlace(status string) {
	if !enabled {
		return
	}
	bidPlaceTotal.WithLabelValues(status).Inc()
}

// BidVerify records a bid verification operation.
func BidVerify(status string) {
	if !enabled {
		return
	}
	bidVerifyTotal.WithLabelValues(status).Inc()
}

// DomainRegister records a domain registration operation.
func DomainRegister(status string) {
	if !enabled {
		return
	}
	domainRegisterTotal.WithLabelValues(status).Inc()
}

// BidWithdraw records a bid withdrawal operation.
func BidWithdraw(status string) {
	if !enabled {
		return
	}
	bidWithdrawTotal.WithLabelValues(status).Inc()
}

// AttestationCheck records an attestation pre-check request.
func AttestationCheck(result string) {
	if !enabled {
		return
	}
	attestationCheckTotal.WithLabelValues(result).Inc()
}
