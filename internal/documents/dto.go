package documents

import "time"

// JDResponse is the outward-facing representation of a job description.
type JDResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Content        string    `json:"content,omitempty"`
	FileName       string    `json:"filename"`
	MimeType       string    `json:"mimeType"`
	SizeBytes      int64     `json:"sizeBytes"`
	State          State     `json:"status"`
	RankedCVsCount int       `json:"rankedCVsCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CVResponse is the outward-facing representation of a CV.
type CVResponse struct {
	ID            string    `json:"id"`
	FileName      string    `json:"filename"`
	CandidateName string    `json:"candidateName"`
	Content       string    `json:"content,omitempty"`
	MimeType      string    `json:"mimeType"`
	SizeBytes     int64     `json:"sizeBytes"`
	State         State     `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toJDResponse(jd JobDescription, withContent bool) JDResponse {
	resp := JDResponse{
		ID:             jd.ID,
		Title:          jd.Title,
		Description:    jd.Description,
		FileName:       jd.FileName,
		MimeType:       jd.MimeType,
		SizeBytes:      jd.SizeBytes,
		State:          jd.State,
		RankedCVsCount: jd.RankedCVsCount,
		CreatedAt:      jd.CreatedAt,
		UpdatedAt:      jd.UpdatedAt,
	}
	if withContent {
		resp.Content = jd.Content
	}
	return resp
}

func toCVResponse(cv CV, withContent bool) CVResponse {
	resp := CVResponse{
		ID:            cv.ID,
		FileName:      cv.FileName,
		CandidateName: cv.CandidateName,
		MimeType:      cv.MimeType,
		SizeBytes:     cv.SizeBytes,
		State:         cv.State,
		CreatedAt:     cv.CreatedAt,
		UpdatedAt:     cv.UpdatedAt,
	}
	if withContent {
		resp.Content = cv.Content
	}
	return resp
}
