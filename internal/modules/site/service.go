package site

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/forumhub/core/internal/models"
	"github.com/forumhub/core/internal/modules/page"
	"github.com/forumhub/core/internal/pkg/apperr"
	"github.com/forumhub/core/internal/pkg/markdown"
	"github.com/forumhub/core/internal/pkg/slug"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/net/idna"
	"gorm.io/gorm"
)

const secretKeyBytes = 24

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// NormalizeHostname lowercases host, drops any port and converts IDN labels
// to their ASCII form.
func NormalizeHostname(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		return ascii
	}
	return host
}

func (s *Service) GetByID(ctx context.Context, id int64) (*models.SiteModel, error) {
	var site models.SiteModel
	if err := s.db.WithContext(ctx).First(&site, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &site, nil
}

func (s *Service) GetByHostname(ctx context.Context, hostname string) (*models.SiteModel, error) {
	var site models.SiteModel
	err := s.db.WithContext(ctx).First(&site, "hostname = ?", NormalizeHostname(hostname)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &site, nil
}

func (s *Service) List(ctx context.Context) ([]models.SiteModel, error) {
	var sites []models.SiteModel
	return sites, s.db.WithContext(ctx).Order("id ASC").Find(&sites).Error
}

// CheckAPISecret accepts secret when it matches a live secret of the site
// owned by requesterID or by the sysbot, whose secrets may act as anyone.
func (s *Service) CheckAPISecret(ctx context.Context, site *models.SiteModel, requesterID int64, secret string) error {
	if !site.EnableAPI {
		return apperr.Forbidden("API not enabled on this site")
	}
	if secret == "" {
		return apperr.Auth("API secret missing")
	}

	var requester models.MemberModel
	err := s.db.WithContext(ctx).First(&requester, "site_id = ? AND id = ?", site.ID, requesterID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && requester.IsDeleted) {
		return apperr.Auth("no such API requester: %d", requesterID)
	}
	if err != nil {
		return err
	}

	var secrets []models.APISecretModel
	err = s.db.WithContext(ctx).
		Where("site_id = ? AND is_deleted = ? AND user_id IN ?", site.ID, false, []int64{requesterID, models.SysbotUserID}).
		Find(&secrets).Error
	if err != nil {
		return err
	}
	for _, sec := range secrets {
		if bcrypt.CompareHashAndPassword([]byte(sec.SecretHash), []byte(secret)) == nil {
			return nil
		}
	}
	return apperr.Auth("bad API secret")
}

// CreateAPISecret issues a new secret for userID and returns its plaintext,
// which is not stored.
func (s *Service) CreateAPISecret(ctx context.Context, siteID, userID int64) (string, error) {
	buf := make([]byte, secretKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	key := hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxNr int
		if err := tx.Model(&models.APISecretModel{}).
			Where("site_id = ?", siteID).
			Select("COALESCE(MAX(nr), 0)").Scan(&maxNr).Error; err != nil {
			return err
		}
		return tx.Create(&models.APISecretModel{
			SiteID:     siteID,
			Nr:         maxNr + 1,
			UserID:     userID,
			SecretHash: string(hash),
		}).Error
	})
	if err != nil {
		return "", err
	}
	return key, nil
}

// Import creates the site described by data in one transaction, replacing
// any existing site with the same id. The system and sysbot members are
// added when data lacks them.
func (s *Service) Import(ctx context.Context, data SiteData) (*IDAddress, error) {
	if err := validateImport(&data); err != nil {
		return nil, err
	}
	site := &models.SiteModel{
		ID:        data.Site.ID,
		Hostname:  NormalizeHostname(data.Site.Hostname),
		Origin:    strings.TrimRight(data.Site.Origin, "/"),
		Name:      data.Site.Name,
		EnableAPI: data.Settings.EnableAPI,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if site.ID > 0 {
			if err := deleteSiteRows(tx, site.ID); err != nil {
				return err
			}
		}
		if err := tx.Create(site).Error; err != nil {
			return fmt.Errorf("create site: %w", err)
		}
		if err := importMembers(tx, site.ID, data.Members); err != nil {
			return err
		}
		if err := importCategories(tx, site.ID, data.Categories); err != nil {
			return err
		}
		if err := importSecrets(tx, site.ID, data.APISecrets); err != nil {
			return err
		}
		if err := importNotfPrefs(tx, site.ID, data.PageNotfPrefs); err != nil {
			return err
		}
		return importPages(tx, site, data.Pages)
	})
	if err != nil {
		return nil, err
	}
	return &IDAddress{ID: site.ID, Hostname: site.Hostname, Origin: site.Origin}, nil
}

func validateImport(data *SiteData) error {
	if strings.TrimSpace(data.Site.Hostname) == "" {
		return apperr.Validation("site.hostname", "required")
	}
	if data.Site.Origin == "" {
		data.Site.Origin = "http://" + data.Site.Hostname
	}
	seen := map[int64]bool{}
	for i, m := range data.Members {
		if strings.TrimSpace(m.Username) == "" {
			return apperr.Validation(fmt.Sprintf("members[%d].username", i), "required")
		}
		if seen[m.ID] {
			return apperr.Validation(fmt.Sprintf("members[%d].id", i), "duplicate member id %d", m.ID)
		}
		seen[m.ID] = true
	}
	for i, p := range data.Pages {
		if p.ID <= 0 {
			return apperr.Validation(fmt.Sprintf("pages[%d].id", i), "must be positive")
		}
		if !p.PageType.Valid() {
			return apperr.Validation(fmt.Sprintf("pages[%d].pageType", i), "unknown page type %d", p.PageType)
		}
	}
	for i, pref := range data.PageNotfPrefs {
		if !pref.NotfLevel.Valid() {
			return apperr.Validation(fmt.Sprintf("pageNotfPrefs[%d].notfLevel", i), "unknown level %d", pref.NotfLevel)
		}
		if !pref.WholeSite && pref.CategoryID == nil {
			return apperr.Validation(fmt.Sprintf("pageNotfPrefs[%d]", i), "needs wholeSite or categoryId")
		}
	}
	return nil
}

func deleteSiteRows(tx *gorm.DB, siteID int64) error {
	for _, m := range []interface{}{
		&models.PostModel{},
		&models.PageModel{},
		&models.PageNotfPrefModel{},
		&models.APISecretModel{},
		&models.CategoryModel{},
		&models.MemberModel{},
	} {
		if err := tx.Where("site_id = ?", siteID).Delete(m).Error; err != nil {
			return err
		}
	}
	if err := tx.Unscoped().Where("site_id = ?", siteID).Delete(&models.SentEmailModel{}).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", siteID).Delete(&models.SiteModel{}).Error
}

func importMembers(tx *gorm.DB, siteID int64, members []MemberData) error {
	given := make(map[int64]bool, len(members))
	for _, m := range members {
		given[m.ID] = true
	}
	var rows []models.MemberModel
	for _, builtin := range []models.MemberModel{
		{SiteID: siteID, ID: models.SystemUserID, Username: "system", FullName: "System"},
		{SiteID: siteID, ID: models.SysbotUserID, Username: "sysbot", FullName: "Sysbot"},
	} {
		if !given[builtin.ID] {
			rows = append(rows, builtin)
		}
	}
	for _, m := range members {
		rows = append(rows, models.MemberModel{
			SiteID:    siteID,
			ID:        m.ID,
			Username:  strings.TrimSpace(m.Username),
			FullName:  m.FullName,
			EmailAddr: strings.TrimSpace(m.EmailAddress),
			IsDeleted: m.IsDeleted,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("import members: %w", err)
	}
	return nil
}

func importCategories(tx *gorm.DB, siteID int64, cats []CategoryData) error {
	if len(cats) == 0 {
		return nil
	}
	rows := make([]models.CategoryModel, 0, len(cats))
	for _, c := range cats {
		catSlug := c.Slug
		if catSlug == "" {
			catSlug = slug.Make(c.Name)
		}
		rows = append(rows, models.CategoryModel{
			SiteID:      siteID,
			ID:          c.ID,
			ExtID:       c.ExtID,
			Slug:        catSlug,
			Name:        c.Name,
			Description: c.Description,
		})
	}
	if err := tx.Create(&rows).Error; err != nil {
		return fmt.Errorf("import categories: %w", err)
	}
	return nil
}

func importSecrets(tx *gorm.DB, siteID int64, secrets []APISecretData) error {
	for _, sec := range secrets {
		hash := sec.SecretHash
		if sec.SecretKey != "" {
			b, err := bcrypt.GenerateFromPassword([]byte(sec.SecretKey), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			hash = string(b)
		}
		if hash == "" {
			return apperr.Validation("apiSecrets", "secret %d has neither secretKey nor secretHash", sec.Nr)
		}
		row := models.APISecretModel{
			SiteID:     siteID,
			Nr:         sec.Nr,
			UserID:     sec.UserID,
			SecretHash: hash,
			IsDeleted:  sec.IsDeleted,
		}
		if sec.CreatedAt > 0 {
			row.CreatedAt = time.UnixMilli(sec.CreatedAt)
		}
		if sec.DeletedAt != nil {
			t := time.UnixMilli(*sec.DeletedAt)
			row.DeletedAt = &t
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("import api secret %d: %w", sec.Nr, err)
		}
	}
	return nil
}

func importNotfPrefs(tx *gorm.DB, siteID int64, prefs []NotfPrefData) error {
	for _, p := range prefs {
		row := models.PageNotfPrefModel{
			SiteID:     siteID,
			MemberID:   p.MemberID,
			ScopeKey:   models.NotfScopeKey(p.WholeSite, p.CategoryID),
			NotfLevel:  p.NotfLevel,
			WholeSite:  p.WholeSite,
			CategoryID: p.CategoryID,
		}
		if p.WholeSite {
			row.CategoryID = nil
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("import notf pref of member %d: %w", p.MemberID, err)
		}
	}
	return nil
}

func importPages(tx *gorm.DB, site *models.SiteModel, pages []PageData) error {
	var maxID int64
	for _, p := range pages {
		bodyHTML, err := markdown.ToHTML(p.Body)
		if err != nil {
			return err
		}
		content := page.Content{PageType: p.PageType, CategoryID: p.CategoryID, AuthorID: p.AuthorID, Title: p.Title, Body: p.Body}
		row := models.PageModel{
			SiteID:      site.ID,
			ID:          p.ID,
			ExtID:       p.ExtID,
			PageType:    p.PageType,
			CategoryID:  p.CategoryID,
			AuthorID:    p.AuthorID,
			Title:       p.Title,
			Body:        p.Body,
			BodyHTML:    bodyHTML,
			Slug:        slug.Make(p.Title),
			ContentHash: content.Hash(),
			Version:     1,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("import page %d: %w", p.ID, err)
		}
		if p.ID > maxID {
			maxID = p.ID
		}
	}
	if maxID == 0 {
		return nil
	}
	site.NextPageID = maxID
	return tx.Model(&models.SiteModel{}).Where("id = ?", site.ID).UpdateColumn("next_page_id", maxID).Error
}

// Export dumps a site in the form Import reads. Secrets are exported as
// hashes.
func (s *Service) Export(ctx context.Context, siteID int64) (*SiteData, error) {
	site, err := s.GetByID(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, apperr.NotFound("site %d not found", siteID)
	}

	db := s.db.WithContext(ctx)
	var (
		members []models.MemberModel
		cats    []models.CategoryModel
		secrets []models.APISecretModel
		prefs   []models.PageNotfPrefModel
		pages   []models.PageModel
	)
	for _, q := range []struct {
		dest  interface{}
		order string
	}{
		{&members, "id ASC"},
		{&cats, "id ASC"},
		{&secrets, "nr ASC"},
		{&prefs, "member_id ASC, scope_key ASC"},
		{&pages, "id ASC"},
	} {
		if err := db.Where("site_id = ?", siteID).Order(q.order).Find(q.dest).Error; err != nil {
			return nil, err
		}
	}

	out := &SiteData{
		Site:          SiteMeta{ID: site.ID, Hostname: site.Hostname, Origin: site.Origin, Name: site.Name},
		Settings:      Settings{EnableAPI: site.EnableAPI},
		Members:       make([]MemberData, 0, len(members)),
		Categories:    make([]CategoryData, 0, len(cats)),
		APISecrets:    make([]APISecretData, 0, len(secrets)),
		PageNotfPrefs: make([]NotfPrefData, 0, len(prefs)),
		Pages:         make([]PageData, 0, len(pages)),
	}
	for _, m := range members {
		out.Members = append(out.Members, MemberData{ID: m.ID, Username: m.Username, FullName: m.FullName, EmailAddress: m.EmailAddr, IsDeleted: m.IsDeleted})
	}
	for _, c := range cats {
		out.Categories = append(out.Categories, CategoryData{ID: c.ID, ExtID: c.ExtID, Slug: c.Slug, Name: c.Name, Description: c.Description})
	}
	for _, sec := range secrets {
		d := APISecretData{Nr: sec.Nr, UserID: sec.UserID, CreatedAt: sec.CreatedAt.UnixMilli(), IsDeleted: sec.IsDeleted, SecretHash: sec.SecretHash}
		if sec.DeletedAt != nil {
			ms := sec.DeletedAt.UnixMilli()
			d.DeletedAt = &ms
		}
		out.APISecrets = append(out.APISecrets, d)
	}
	for _, p := range prefs {
		out.PageNotfPrefs = append(out.PageNotfPrefs, NotfPrefData{MemberID: p.MemberID, NotfLevel: p.NotfLevel, WholeSite: p.WholeSite, CategoryID: p.CategoryID})
	}
	for _, p := range pages {
		out.Pages = append(out.Pages, PageData{ID: p.ID, ExtID: p.ExtID, PageType: p.PageType, CategoryID: p.CategoryID, AuthorID: p.AuthorID, Title: p.Title, Body: p.Body})
	}
	return out, nil
}
