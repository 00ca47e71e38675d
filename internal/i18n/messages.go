package i18n

// DefaultLanguage is used when a requested language has no catalog.
const DefaultLanguage = "en"

var catalogs = map[string]map[string]string{
	"en": {
		"welcome":          "Welcome!",
		"login_success":    "Login successful",
		"otp_sent":         "OTP sent to your mobile number",
		"otp_verified":     "OTP verified successfully",
		"profile_updated":  "Profile updated successfully",
		"language_updated": "Language preference updated",
	},
	"hi": {
		"welcome":          "स्वागत है!",
		"login_success":    "लॉगिन सफल रहा",
		"otp_sent":         "आपके मोबाइल नंबर पर OTP भेजा गया है",
		"otp_verified":     "OTP सफलतापूर्वक सत्यापित हुआ",
		"profile_updated":  "प्रोफ़ाइल सफलतापूर्वक अपडेट हुई",
		"language_updated": "भाषा वरीयता अपडेट हुई",
	},
	"bn": {
		"welcome":          "স্বাগতম!",
		"login_success":    "লগইন সফল হয়েছে",
		"otp_sent":         "আপনার মোবাইল নম্বরে OTP পাঠানো হয়েছে",
		"otp_verified":     "OTP সফলভাবে যাচাই হয়েছে",
		"profile_updated":  "প্রোফাইল সফলভাবে আপডেট হয়েছে",
		"language_updated": "ভাষা পছন্দ আপডেট হয়েছে",
	},
	"ta": {
		"welcome":          "வரவேற்கிறோம்!",
		"login_success":    "உள்நுழைவு வெற்றிகரமாக முடிந்தது",
		"otp_sent":         "உங்கள் மொபைல் எண்ணுக்கு OTP அனுப்பப்பட்டது",
		"otp_verified":     "OTP வெற்றிகரமாக சரிபார்க்கப்பட்டது",
		"profile_updated":  "சுயவிவரம் புதுப்பிக்கப்பட்டது",
		"language_updated": "மொழி விருப்பம் புதுப்பிக்கப்பட்டது",
	},
	"te": {
		"welcome":          "స్వాగతం!",
		"login_success":    "లాగిన్ విజయవంతమైంది",
		"otp_sent":         "మీ మొబైల్ నంబర్‌కు OTP పంపబడింది",
		"otp_verified":     "OTP విజయవంతంగా ధృవీకరించబడింది",
		"profile_updated":  "ప్రొఫైల్ విజయవంతంగా నవీకరించబడింది",
		"language_updated": "భాషా ప్రాధాన్యత నవీకరించబడింది",
	},
	"mr": {
		"welcome":          "स्वागत आहे!",
		"login_success":    "लॉगिन यशस्वी झाले",
		"otp_sent":         "तुमच्या मोबाइल नंबरवर OTP पाठवला आहे",
		"otp_verified":     "OTP यशस्वीरित्या पडताळला गेला",
		"profile_updated":  "प्रोफाइल यशस्वीरित्या अपडेट झाले",
		"language_updated": "भाषा प्राधान्य अपडेट झाले",
	},
}

// Supported reports whether a catalog exists for the language code.
func Supported(code string) bool {
	_, ok := catalogs[code]
	return ok
}

// Messages returns the catalog for the language code, falling back to
// English for unknown codes. The returned map is a copy.
func Messages(code string) map[string]string {
	catalog, ok := catalogs[code]
	if !ok {
		catalog = catalogs[DefaultLanguage]
	}
	out := make(map[string]string, len(catalog))
	for k, v := range catalog {
		out[k] = v
	}
	return out
}
