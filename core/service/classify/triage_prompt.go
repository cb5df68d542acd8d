package classify

import (
	"fmt"

	"triage_server/core/domain"
)

// classificationTemplate instructs the model to answer with exactly one
// category label. Changing the wording changes parse rates; keep the
// output contract ("One word only") intact when editing.
const classificationTemplate = `Classify this email into ONE category.

Email:
From: %s
Subject: %s
Content: %s

Categories:
- Important: Certifications, exams, payments, security alerts, urgent work/personal matters
- Promotional: Sales, discounts, shopping deals from retailers
- Social: Facebook, LinkedIn, Twitter, Instagram, friend/family messages
- Marketing: Tech company updates, newsletters, product announcements, tips
- Spam: Phishing, scams, suspicious content
- General: Welcome emails, account setup, generic notifications

Rules:
- Certification emails (Salesforce, exams) = Important
- Payment confirmations = Important
- Security/storage alerts = Important
- Product updates from tech companies = Marketing
- Sales/discounts from stores = Promotional
- Social network notifications = Social

Output ONLY the category name (Important, Promotional, Social, Marketing, Spam, or General).
No explanation. One word only.

Category:`

// BuildPrompt renders the classification prompt for a single message.
func BuildPrompt(msg domain.Message) string {
	return fmt.Sprintf(classificationTemplate, msg.Sender, msg.Subject, msg.Snippet)
}
