// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package policyrpc

// DecodeSiteAndHostDecision decodes the older [S,maxC] one-hot response
// variant, which selects both site and host row/column in a single
// tensor. Its determinism is weaker than the site-only form: host indices
// within a site are not stable across topology changes the way a
// site-only response followed by a local feasibility-based host pick is.
// Selected via Client.WithDecisionForm(DecisionSiteAndHost) for decision
// servers speaking the older protocol; new integrations should prefer the
// site-only response.
func DecodeSiteAndHostDecision(t Tensor) (siteIdx, hostIdx int, ok bool, err error) {
	if len(t.Shape) != 2 {
		return 0, 0, false, &ProtocolError{Reason: "host-and-site decision tensor must be rank 2"}
	}
	values, err := DecodeVector(t)
	if err != nil {
		return 0, 0, false, err
	}
	cols := t.Shape[1]
	if cols == 0 {
		return 0, 0, false, &ProtocolError{Reason: "host-and-site decision tensor has zero columns"}
	}
	idx, found := firstNonZero(values)
	if !found {
		return 0, 0, false, nil
	}
	return idx / cols, idx % cols, true, nil
}
