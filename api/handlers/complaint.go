package handlers

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/linesmerrill/swachhsnap-api/api"
	"github.com/linesmerrill/swachhsnap-api/config"
	"github.com/linesmerrill/swachhsnap-api/databases"
	"github.com/linesmerrill/swachhsnap-api/geo"
	"github.com/linesmerrill/swachhsnap-api/lifecycle"
	"github.com/linesmerrill/swachhsnap-api/media"
	"github.com/linesmerrill/swachhsnap-api/models"
	"github.com/linesmerrill/swachhsnap-api/realtime"
)

// multipartOverhead is room for the form fields around the photo
const multipartOverhead = 1 << 20

// Complaint exported for testing purposes
type Complaint struct {
	DB         databases.ComplaintDatabase
	UDB        databases.UserDatabase
	Uploader   media.Uploader
	Notifier   realtime.Notifier
	Classifier *geo.Classifier
	Metrics    *api.Metrics
	MaxBytes   int64
	Now        func() time.Time
}

type complaintRequest struct {
	Category    string   `json:"category" validate:"required,oneof=garbage road river public"`
	Description string   `json:"description" validate:"max=2000"`
	Latitude    *float64 `json:"latitude" validate:"required"`
	Longitude   *float64 `json:"longitude" validate:"required"`
	Photo       string   `json:"photo"`
	PhotoURL    string   `json:"photoUrl" validate:"omitempty,url"`
}

type assignRequest struct {
	SweeperID string `json:"sweeperId" validate:"required,len=24,hexadecimal"`
}

type feedbackRequest struct {
	Feedback string `json:"feedback" validate:"required"`
}

type proofRequest struct {
	Photo    string `json:"photo" validate:"required_without=PhotoURL"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,url"`
}

// photo is either image bytes to upload or the url of an image the client
// already uploaded to the provider
type photo struct {
	img media.Image
	url string
}

func (c Complaint) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// readPhoto takes the "photo" part of a multipart form, a data url in a
// JSON body, or a "photoUrl" naming an image already on the provider
func (c Complaint) readPhoto(w http.ResponseWriter, r *http.Request) (photo, error) {
	if isMultipart(r) {
		return c.readFormPhoto(w, r)
	}
	var req proofRequest
	if err := decodeJSON(w, r, &req, c.bodyLimit()); err != nil {
		return photo{}, err
	}
	return c.jsonPhoto(req.Photo, req.PhotoURL)
}

func (c Complaint) readFormPhoto(w http.ResponseWriter, r *http.Request) (photo, error) {
	limitBody(w, r, c.bodyLimit())
	if err := r.ParseMultipartForm(c.maxBytes() + multipartOverhead); err != nil {
		return photo{}, bodyError(err)
	}
	if u := r.FormValue("photoUrl"); u != "" {
		return photo{url: u}, nil
	}
	f, _, err := r.FormFile("photo")
	if err != nil {
		return photo{}, fmt.Errorf("%w: photo: %v", media.ErrInvalidImage, err)
	}
	defer f.Close()
	img, err := media.ReadImage(f, c.maxBytes())
	return photo{img: img}, err
}

func (c Complaint) jsonPhoto(dataURL, hostedURL string) (photo, error) {
	if hostedURL != "" {
		return photo{url: hostedURL}, nil
	}
	img, err := media.DecodeDataURL(dataURL, c.maxBytes())
	return photo{img: img}, err
}

func (c Complaint) maxBytes() int64 {
	if c.MaxBytes > 0 {
		return c.MaxBytes
	}
	return media.DefaultMaxBytes
}

// bodyLimit is the largest body that can carry a maxBytes image, base64
// encoded, with the other fields around it
func (c Complaint) bodyLimit() int64 {
	return c.maxBytes()*4/3 + multipartOverhead
}

// readComplaint accepts the same fields as a multipart form or a JSON body
func (c Complaint) readComplaint(w http.ResponseWriter, r *http.Request) (complaintRequest, photo, error) {
	var req complaintRequest
	if !isMultipart(r) {
		if err := decodeJSON(w, r, &req, c.bodyLimit()); err != nil {
			return req, photo{}, err
		}
		p, err := c.jsonPhoto(req.Photo, req.PhotoURL)
		return req, p, err
	}

	p, err := c.readFormPhoto(w, r)
	if err != nil {
		return req, photo{}, err
	}
	req.Category = r.FormValue("category")
	req.Description = r.FormValue("description")
	for field, dst := range map[string]**float64{"latitude": &req.Latitude, "longitude": &req.Longitude} {
		v := r.FormValue(field)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return req, photo{}, fmt.Errorf("%w: %s: %v", errBadRequest, field, err)
		}
		*dst = &f
	}
	if err := validate.Struct(req); err != nil {
		return req, photo{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return req, p, nil
}

// store uploads p under the complaint's key and returns its url and the key
// written. A url the client already uploaded must live on the configured
// provider; nothing is written for it and the key is empty.
func (c Complaint) store(ctx context.Context, id primitive.ObjectID, stage string, p photo) (string, string, error) {
	if c.Uploader == nil {
		return "", "", media.ErrNotConfigured
	}
	if p.url != "" {
		host, ok := c.Uploader.(media.Host)
		if !ok || !host.Hosts(p.url) {
			return "", "", fmt.Errorf("%w: %s is not hosted by the media provider", media.ErrInvalidImage, p.url)
		}
		return p.url, "", nil
	}
	key := media.ObjectKey(id.Hex(), stage, p.img)
	url, err := c.Uploader.Upload(ctx, p.img, key)
	c.Metrics.RecordUpload(stage, err)
	return url, key, err
}

// discard removes an upload whose complaint update did not go through
func (c Complaint) discard(ctx context.Context, key string) {
	rm, ok := c.Uploader.(media.Remover)
	if !ok {
		zap.S().Warnw("orphaned upload left in place", "key", key)
		return
	}
	ctx, cancel := api.WithQueryTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := rm.Remove(ctx, key); err != nil {
		zap.S().Warnw("failed to remove orphaned upload", "key", key, "error", err)
		return
	}
	zap.S().Infow("removed orphaned upload", "key", key)
}

// CreateComplaintHandler files a complaint. The photo is uploaded first so
// no record exists without a before image.
func (c Complaint) CreateComplaintHandler(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		config.ErrorStatus("failed to create complaint", statusFor(err), w, err)
		return
	}
	req, p, err := c.readComplaint(w, r)
	if err != nil {
		c.Metrics.RecordTransition("create", outcomeFor(err))
		config.ErrorStatus("failed to create complaint", statusFor(err), w, err)
		return
	}
	coord := geo.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := coord.Validate(); err != nil {
		c.Metrics.RecordTransition("create", outcomeFor(err))
		config.ErrorStatus("failed to create complaint", statusFor(err), w, err)
		return
	}
	category, err := models.ParseCategory(req.Category)
	if err != nil {
		config.ErrorStatus("failed to create complaint", http.StatusBadRequest, w, err)
		return
	}

	oid := primitive.NewObjectID()
	url, key, err := c.store(r.Context(), oid, media.StageBefore, p)
	if err != nil {
		c.Metrics.RecordTransition("create", outcomeFor(err))
		config.ErrorStatus("failed to upload photo", statusFor(err), w, err)
		return
	}

	now := c.now().UTC()
	complaint := models.Complaint{
		ID:          oid,
		UserID:      id.ID,
		UserName:    id.Name,
		Category:    category,
		Description: strings.TrimSpace(req.Description),
		BeforeImage: url,
		Latitude:    coord.Latitude,
		Longitude:   coord.Longitude,
		Status:      models.StatusSubmitted,
		Priority:    c.Classifier.Classify(coord),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	if _, err := c.DB.InsertOne(ctx, complaint); err != nil {
		if key != "" {
			c.discard(r.Context(), key)
		}
		c.Metrics.RecordTransition("create", outcomeFor(err))
		config.ErrorStatus("failed to create complaint", http.StatusInternalServerError, w, err)
		return
	}
	c.Metrics.RecordTransition("create", "ok")
	notify(r.Context(), c.Notifier, databases.ComplaintCollection)

	if zone, meters, ok := c.Classifier.Nearest(coord); ok && complaint.Priority == models.PriorityHigh {
		zap.S().Infow("complaint near sensitive zone", "complaintId", oid.Hex(), "zone", zone.Name, "meters", int(meters))
	}
	zap.S().Infow("complaint created", "complaintId", oid.Hex(), "priority", complaint.Priority, "userId", id.ID)
	writeJSON(w, http.StatusCreated, complaint)
}

// scopeFilter limits a complaint query to what the caller's role may see
func scopeFilter(id api.Identity) bson.M {
	switch id.Role {
	case models.RoleAdmin:
		return bson.M{}
	case models.RoleSweeper:
		return bson.M{"assignedSweeperId": id.ID, "status": bson.M{"$ne": models.StatusDone}}
	default:
		return bson.M{"userId": id.ID}
	}
}

// visible reports whether the caller may read c. Sweepers also see
// unassigned complaints so they can claim them with proof.
func visible(c models.Complaint, id api.Identity) bool {
	switch id.Role {
	case models.RoleAdmin:
		return true
	case models.RoleSweeper:
		return c.AssignedSweeperID == nil || c.AssignedTo(id.ID)
	default:
		return c.ReportedBy(id.ID)
	}
}

// listComplaints returns the caller's scoped complaints, priority sorted
func listComplaints(ctx context.Context, db databases.ComplaintDatabase, id api.Identity, status *models.Status) ([]models.Complaint, error) {
	filter := scopeFilter(id)
	if status != nil {
		if id.Is(models.RoleSweeper) && *status == models.StatusDone {
			return []models.Complaint{}, nil
		}
		filter["status"] = *status
	}
	cs, err := db.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	if cs == nil {
		cs = []models.Complaint{}
	}
	lifecycle.Sort(cs)
	return cs, nil
}

// ComplaintsHandler lists the complaints the caller can see, high priority first
func (c Complaint) ComplaintsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		config.ErrorStatus("failed to get complaints", statusFor(err), w, err)
		return
	}
	var status *models.Status
	if v := r.URL.Query().Get("status"); v != "" {
		s, err := models.ParseStatus(v)
		if err != nil {
			config.ErrorStatus("failed to get complaints", http.StatusBadRequest, w, err)
			return
		}
		status = &s
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	cs, err := listComplaints(ctx, c.DB, id, status)
	if err != nil {
		config.ErrorStatus("failed to get complaints", http.StatusInternalServerError, w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// load fetches the complaint named in the route if the caller may see it
func (c Complaint) load(ctx context.Context, r *http.Request, id api.Identity) (*models.Complaint, error) {
	oid, err := objectID(mux.Vars(r)["complaint_id"])
	if err != nil {
		return nil, err
	}
	complaint, err := c.DB.FindOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return nil, err
	}
	if !visible(*complaint, id) {
		// same answer as a missing id, other people's complaints are not listed
		return nil, fmt.Errorf("complaint %s: %w", oid.Hex(), databases.ErrNotFound)
	}
	return complaint, nil
}

// ComplaintByIDHandler returns a complaint by ID
func (c Complaint) ComplaintByIDHandler(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		config.ErrorStatus("failed to get complaint", statusFor(err), w, err)
		return
	}
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()
	complaint, err := c.load(ctx, r, id)
	if err != nil {
		config.ErrorStatus("failed to get complaint by ID", statusFor(err), w, err)
		return
	}
	writeJSON(w, http.StatusOK, complaint)
}

type step func(ctx context.Context, c models.Complaint, by models.User) (models.ComplaintPatch, error)

// transition loads the complaint, computes the patch and writes it guarded
// by the status it was computed from. The error is already answered.
func (c Complaint) transition(w http.ResponseWriter, r *http.Request, action string, fn step) error {
	id, err := identity(r)
	if err != nil {
		config.ErrorStatus("failed to "+action+" complaint", statusFor(err), w, err)
		return err
	}
	complaint, err := c.load(r.Context(), r, id)
	if err == nil {
		var patch models.ComplaintPatch
		if patch, err = fn(r.Context(), *complaint, actor(id)); err == nil {
			ctx, cancel := api.WithQueryTimeout(r.Context())
			err = c.DB.Apply(ctx, complaint.ID, patch)
			cancel()
			if err == nil {
				updated := patch.Apply(*complaint)
				complaint = &updated
			}
		}
	}
	c.Metrics.RecordTransition(action, outcomeFor(err))
	if err != nil {
		zap.S().Debugw("complaint transition refused", "action", action, "userId", id.ID, "error", err)
		config.ErrorStatus("failed to "+action+" complaint", statusFor(err), w, err)
		return err
	}

	notify(r.Context(), c.Notifier, databases.ComplaintCollection)
	zap.S().Infow("complaint updated", "action", action, "complaintId", complaint.ID.Hex(), "status", complaint.Status, "userId", id.ID)
	writeJSON(w, http.StatusOK, complaint)
	return nil
}

// AssignComplaintHandler hands a submitted complaint to a sweeper
func (c Complaint) AssignComplaintHandler(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decodeJSON(w, r, &req, maxJSONBytes); err != nil {
		config.ErrorStatus("failed to assign complaint", statusFor(err), w, err)
		return
	}
	_ = c.transition(w, r, "assign", func(ctx context.Context, complaint models.Complaint, admin models.User) (models.ComplaintPatch, error) {
		sid, err := objectID(req.SweeperID)
		if err != nil {
			return models.ComplaintPatch{}, err
		}
		sweeper, err := c.UDB.FindOne(ctx, bson.M{"_id": sid})
		if err != nil {
			if errors.Is(err, databases.ErrNotFound) {
				return models.ComplaintPatch{}, fmt.Errorf("%w: no sweeper %s", lifecycle.ErrInvalidInput, req.SweeperID)
			}
			return models.ComplaintPatch{}, err
		}
		return lifecycle.Assign(complaint, admin, *sweeper)
	})
}

// SubmitProofHandler uploads the after photo and moves the complaint to review.
// Permission is checked before the upload so a refused sweeper stores nothing,
// and an upload whose update then fails is removed again.
func (c Complaint) SubmitProofHandler(w http.ResponseWriter, r *http.Request) {
	p, err := c.readPhoto(w, r)
	if err != nil {
		c.Metrics.RecordTransition("proof", outcomeFor(err))
		config.ErrorStatus("failed to submit proof", statusFor(err), w, err)
		return
	}
	var uploaded string
	err = c.transition(w, r, "proof", func(ctx context.Context, complaint models.Complaint, sweeper models.User) (models.ComplaintPatch, error) {
		if err := lifecycle.CanSubmitProof(complaint, sweeper); err != nil {
			return models.ComplaintPatch{}, err
		}
		url, key, err := c.store(ctx, complaint.ID, media.StageAfter, p)
		if err != nil {
			return models.ComplaintPatch{}, err
		}
		uploaded = key
		return lifecycle.SubmitProof(complaint, sweeper, url)
	})
	if err != nil && uploaded != "" {
		c.discard(r.Context(), uploaded)
	}
}

// ApproveComplaintHandler closes a complaint under review
func (c Complaint) ApproveComplaintHandler(w http.ResponseWriter, r *http.Request) {
	_ = c.transition(w, r, "approve", func(_ context.Context, complaint models.Complaint, admin models.User) (models.ComplaintPatch, error) {
		return lifecycle.Approve(complaint, admin)
	})
}

// FeedbackHandler records the reporter's rating on a closed complaint
func (c Complaint) FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req, maxJSONBytes); err != nil {
		config.ErrorStatus("failed to leave feedback", statusFor(err), w, err)
		return
	}
	f, err := models.ParseFeedback(req.Feedback)
	if err != nil {
		config.ErrorStatus("failed to leave feedback", http.StatusBadRequest, w, err)
		return
	}
	_ = c.transition(w, r, "feedback", func(_ context.Context, complaint models.Complaint, citizen models.User) (models.ComplaintPatch, error) {
		return lifecycle.RecordFeedback(complaint, citizen, f)
	})
}
